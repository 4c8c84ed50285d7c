package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/mireles/aibridge/pkg/orchestrator"
	"github.com/mireles/aibridge/pkg/request"
)

// repl is the line-oriented chat loop state.
type repl struct {
	orc       *orchestrator.Orchestrator
	model     string
	stream    bool
	isTTY     bool
	renderer  *glamour.TermRenderer
	history   []request.Turn
	lastImage string
}

func run(cfg orchestrator.Config, stream bool) error {
	orc, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = orc.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &repl{
		orc:    orc,
		model:  cfg.DefaultModel,
		stream: stream,
		isTTY:  term.IsTerminal(int(os.Stdout.Fd())),
	}
	if r.isTTY {
		r.renderer = newMarkdownRenderer()
	}

	fmt.Printf("aibridge: chatting with %q (/help for commands)\n", r.model)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				break
			}
			continue
		}

		r.chat(ctx, line)
	}

	return scanner.Err()
}

// command handles a slash command and reports whether the loop should exit.
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Print(`Commands:
  /model [name]          show or switch the active model
  /image <prompt>        generate an image
  /attach <path>         attach an image to the next message
  /stats                 show usage statistics
  /budget <daily> [mo]   set budget limits
  /clear                 forget the conversation history
  /quit                  exit
`)
	case "/model":
		if len(fields) > 1 {
			r.model = fields[1]
			fmt.Printf("model set to %q\n", r.model)
		} else {
			fmt.Printf("current model: %q\n", r.model)
		}
	case "/image":
		prompt := strings.TrimSpace(strings.TrimPrefix(line, "/image"))
		if prompt == "" {
			fmt.Println("usage: /image <prompt>")
			break
		}
		r.generateImage(ctx, prompt)
	case "/attach":
		if len(fields) < 2 {
			fmt.Println("usage: /attach <path>")
			break
		}
		r.lastImage = fields[1]
		fmt.Printf("attached %s to the next message\n", r.lastImage)
	case "/stats":
		r.stats(ctx)
	case "/budget":
		r.setBudget(fields[1:])
	case "/clear":
		r.history = nil
		fmt.Println("history cleared")
	default:
		fmt.Printf("unknown command %s (try /help)\n", fields[0])
	}

	return false
}

func (r *repl) chat(ctx context.Context, message string) {
	cr := orchestrator.ChatRequest{
		Message: message,
		Model:   r.model,
		History: r.history,
		Image:   r.lastImage,
	}
	r.lastImage = ""

	var resp *request.Response
	var err error
	if r.stream {
		resp, err = r.streamResponse(ctx, cr)
	} else {
		resp, err = r.orc.Chat(ctx, cr)
		if err == nil {
			fmt.Println(r.render(resp.Text))
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}

	r.history = append(r.history,
		request.Turn{Role: "user", Content: message},
		request.Turn{Role: "assistant", Content: resp.Text},
	)

	if resp.Cached {
		fmt.Println("(cached)")
	}
}

// streamResponse prints fragments as they arrive, then re-renders the full
// text as markdown on a TTY.
func (r *repl) streamResponse(ctx context.Context, cr orchestrator.ChatRequest) (*request.Response, error) {
	cr.OnFragment = func(fragment string) { fmt.Print(fragment) }

	stream, err := r.orc.StreamChat(ctx, cr)
	if err != nil {
		return nil, err
	}

	resp, err := stream.Collect()
	fmt.Println()
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	if r.renderer != nil {
		if rendered, rerr := r.renderer.Render(resp.Text); rerr == nil {
			fmt.Print(rendered)
		}
	}

	return resp, nil
}

func (r *repl) generateImage(ctx context.Context, prompt string) {
	resp, err := r.orc.GenerateImage(ctx, orchestrator.ImageRequest{Prompt: prompt})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}

	for _, img := range resp.Images {
		if img.URL != "" {
			fmt.Printf("image: %s\n", img.URL)
			continue
		}
		path := fmt.Sprintf("aibridge-image-%s.%s", resp.ID[:8], img.Format)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "error: save image: %v\n", err)
			continue
		}
		fmt.Printf("image saved to %s\n", path)
	}
	fmt.Printf("cost: $%.4f\n", resp.Cost)
}

func (r *repl) stats(ctx context.Context) {
	summary, err := r.orc.UsageStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}

	fmt.Printf("requests: %d\ntotal cost: $%.4f\ntoday: $%.4f\nthis month: $%.4f\n",
		summary.RequestCount, summary.TotalCost, summary.DailyCost, summary.MonthlyCost)
	if summary.MostUsedModel != "" {
		fmt.Printf("most used model: %s\n", summary.MostUsedModel)
	}
	if summary.Remaining.Daily != nil {
		fmt.Printf("daily budget remaining: $%.4f\n", *summary.Remaining.Daily)
	}
	if summary.Remaining.Monthly != nil {
		fmt.Printf("monthly budget remaining: $%.4f\n", *summary.Remaining.Monthly)
	}
}

func (r *repl) setBudget(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: /budget <daily> [monthly]")
		return
	}

	daily, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid daily limit %q\n", args[0])
		return
	}
	var monthly float64
	if len(args) > 1 {
		monthly, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid monthly limit %q\n", args[1])
			return
		}
	}

	r.orc.SetBudgetLimits(daily, monthly)
	fmt.Println("budget limits updated")
}

func (r *repl) render(text string) string {
	if r.renderer == nil {
		return text
	}
	rendered, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func newMarkdownRenderer() *glamour.TermRenderer {
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return renderer
}

package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mireles/aibridge/pkg/ledger"
	"github.com/mireles/aibridge/pkg/request"
	"github.com/mireles/aibridge/pkg/respcache"
	"github.com/mireles/aibridge/pkg/tools"
)

// jsonSystemPrompt is injected when a structured format is requested and the
// caller supplied no system prompt.
const jsonSystemPrompt = "Please respond in valid JSON format."

// ChatRequest carries the raw caller inputs for one chat call. Zero values
// fall back to configuration defaults.
type ChatRequest struct {
	Message string

	Model    string // Alias or model id; DefaultModel when empty.
	Provider string // Forced provider; inferred when empty.

	System          string
	Temperature     float64
	MaxTokens       int
	ReasoningEffort string
	Format          string // Output format hint, e.g. "json".

	Tools []tools.Input

	Image  string
	Images []string
	Files  []string

	History        []request.Turn
	ConversationID string
	WebSearch      bool
	UseMemory      bool

	// Streaming observers, used by StreamChat.
	OnFragment func(fragment string)
	OnComplete func(resp *request.Response)
}

// Chat sends one chat message and returns the completed response. The call
// path is: resolve, normalize, cache lookup, budget check, dispatch, then
// cache store and usage recording.
func (o *Orchestrator) Chat(ctx context.Context, cr ChatRequest) (*request.Response, error) {
	req, err := o.buildRequest(ctx, cr, false)
	if err != nil {
		return nil, err
	}

	key := respcache.Key(req)
	if o.cache != nil {
		if resp, ok := o.cache.Get(key); ok {
			o.logger.Debug("cache hit", "model", req.Model)
			return resp, nil
		}
	}

	if err := o.checkBudget(ctx, req); err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := o.router.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	o.finalize(resp, req, started)

	if o.cache != nil {
		o.cache.Set(key, resp)
	}
	o.recordUsage(ctx, resp, req.Kind())

	return resp, nil
}

// AnalyzeImage asks a vision-capable model about a single image.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, image, prompt string) (*request.Response, error) {
	return o.Chat(ctx, ChatRequest{Message: prompt, Image: image})
}

// AnalyzeImages asks a vision-capable model about several images at once.
func (o *Orchestrator) AnalyzeImages(ctx context.Context, images []string, prompt string) (*request.Response, error) {
	return o.Chat(ctx, ChatRequest{Message: prompt, Images: images})
}

// AnalyzeDocument extracts a document and asks the model about it.
func (o *Orchestrator) AnalyzeDocument(ctx context.Context, path, prompt string) (*request.Response, error) {
	return o.Chat(ctx, ChatRequest{Message: prompt, Files: []string{path}})
}

// AnalyzeDocuments extracts several documents and asks the model about them.
func (o *Orchestrator) AnalyzeDocuments(ctx context.Context, paths []string, prompt string) (*request.Response, error) {
	return o.Chat(ctx, ChatRequest{Message: prompt, Files: paths})
}

// WebSearch runs a search-enabled chat for the query.
func (o *Orchestrator) WebSearch(ctx context.Context, query string) (*request.Response, error) {
	return o.Chat(ctx, ChatRequest{
		Message:   "Search: " + query,
		WebSearch: true,
		Tools:     []tools.Input{tools.ByName("web_search")},
	})
}

// buildRequest resolves the model, applies defaults, and normalizes
// attachments, history, and tools into a dispatch-ready request.
func (o *Orchestrator) buildRequest(ctx context.Context, cr ChatRequest, stream bool) (*request.Request, error) {
	modelName := cr.Model
	if modelName == "" {
		modelName = o.cfg.DefaultModel
	}
	providerName := cr.Provider
	if providerName == "" {
		providerName = o.cfg.DefaultProvider
	}

	model, provider, err := o.registry.Resolve(modelName, providerName)
	if err != nil {
		return nil, err
	}

	system := cr.System
	if (cr.Format == "json" || cr.Format == "json_schema") && system == "" {
		system = jsonSystemPrompt
	}

	temperature := cr.Temperature
	if temperature == 0 {
		temperature = o.cfg.Temperature
	}

	var memorySnapshot map[string]string
	if cr.UseMemory {
		memorySnapshot = o.memorySnapshot(ctx)
	}

	attachments := o.normalizer.PrepareAttachments(model, cr.Image, cr.Images, cr.Files)

	req := &request.Request{
		Type:            request.TypeChat,
		Message:         cr.Message,
		Model:           model,
		Provider:        provider,
		System:          system,
		Temperature:     temperature,
		MaxTokens:       request.NormalizeMaxTokens(cr.MaxTokens, model),
		ReasoningEffort: cr.ReasoningEffort,
		Tools:           o.tools.Resolve(cr.Tools...),
		Format:          cr.Format,
		Stream:          stream,
		ConversationID:  cr.ConversationID,
		WebSearch:       cr.WebSearch,
		Images:          attachments.Images,
		Files:           attachments.Files,
		NativeFiles:     attachments.NativeFiles,
		Documents:       attachments.Documents,
		ContextMessages: request.BuildContextMessages(attachments.Documents, memorySnapshot),
		History:         request.NormalizeHistory(cr.History),
		MemorySnapshot:  memorySnapshot,
		Timestamp:       time.Now(),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Resolving tool inputs may have registered new definitions; keep the
	// adapters' declared set current.
	if len(req.Tools) > 0 {
		o.router.SetTools(o.tools.Tools())
	}

	return req, nil
}

// checkBudget estimates the request cost and verifies it against the
// configured limits. Without a ledger there is nothing to check.
func (o *Orchestrator) checkBudget(ctx context.Context, req *request.Request) error {
	if o.ledger == nil {
		return nil
	}

	o.mu.Lock()
	budget := o.budget
	o.mu.Unlock()

	estimated := o.registry.EstimateCost(req.Message, req.Model, req.MaxTokens)
	return o.ledger.CheckBudget(ctx, estimated, budget)
}

// finalize stamps orchestrator-owned response fields.
func (o *Orchestrator) finalize(resp *request.Response, req *request.Request, started time.Time) {
	resp.ID = uuid.NewString()
	resp.ConversationID = req.ConversationID
	resp.Timestamp = time.Now()
	resp.ResponseTime = time.Since(started)
}

// recordUsage appends the completed response to the ledger and the running
// in-process totals. Ledger failures are logged, never surfaced.
func (o *Orchestrator) recordUsage(ctx context.Context, resp *request.Response, requestType string) {
	o.mu.Lock()
	o.totalCost += resp.Cost
	o.requestCount++
	o.mu.Unlock()

	if o.ledger == nil {
		return
	}

	err := o.ledger.AddUsageRecord(ctx, ledger.UsageRecord{
		Timestamp:   resp.Timestamp,
		Model:       resp.Model,
		Provider:    resp.Provider,
		Cost:        resp.Cost,
		Tokens:      resp.Usage.TotalTokens,
		RequestType: requestType,
	})
	if err != nil {
		o.logger.Warn("usage record failed", "error", err)
	}
}

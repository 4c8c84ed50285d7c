// Package anthropic provides an adapter for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/registry"
	"github.com/mireles/aibridge/pkg/request"
	"github.com/mireles/aibridge/pkg/structured"
)

// DefaultBaseURL is the Anthropic API endpoint (no trailing slash).
const DefaultBaseURL = "https://api.anthropic.com"

const (
	messagesPath     = "/v1/messages"
	defaultMaxTokens = 1000

	jsonInstruction = "Respond with a single valid JSON object only."
)

var (
	_ providers.Adapter   = (*Adapter)(nil)
	_ providers.ToolAware = (*Adapter)(nil)
)

// Adapter implements providers.Adapter for the Anthropic Messages API.
type Adapter struct {
	providers.Client
	providers.ToolSet
	Registry *registry.Registry
}

// New creates an Adapter configured for the Anthropic API.
func New(apiKey string, reg *registry.Registry) *Adapter {
	a := &Adapter{Registry: reg}
	a.Client.Provider = registry.ProviderAnthropic
	a.BaseURL = DefaultBaseURL
	a.Auth = providers.Auth{Key: apiKey, Header: "x-api-key"}
	a.Headers = map[string]string{
		"anthropic-version": "2023-06-01",
	}

	return a
}

// Provider returns the adapter's provider tag.
func (a *Adapter) Provider() string { return registry.ProviderAnthropic }

// Chat sends a completion request and waits for the full response.
func (a *Adapter) Chat(ctx context.Context, req *request.Request) (*request.Response, error) {
	payload := a.buildPayload(req, false)

	var resp apiResponse
	if err := a.PostJSON(ctx, messagesPath, payload, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	var calls []request.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, request.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	out := a.buildResponse(req, text.String(), resp.Usage)
	out.ToolCalls = calls

	return out, nil
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	Tools       []apiToolDef `json:"tools,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// --- response types ---

type apiResponse struct {
	Content []apiRespContent `json:"content"`
	Usage   apiUsage         `json:"usage"`
}

type apiRespContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildPayload(req *request.Request, stream bool) apiRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := apiRequest{
		Model:     normalizeModelID(req.Model),
		MaxTokens: maxTokens,
		System:    req.System,
		Stream:    stream,
	}

	if req.Temperature != 0 {
		t := req.Temperature
		payload.Temperature = &t
	}

	// The Messages API has no response_format; JSON output is steered
	// through the system prompt instead.
	if req.Format == "json" || req.Format == "json_schema" {
		if payload.System != "" {
			payload.System += "\n\n" + jsonInstruction
		} else {
			payload.System = jsonInstruction
		}
	}

	for _, t := range a.DeclaredTools(req.Tools) {
		schema := t.InputSchema
		if schema == nil {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		payload.Tools = append(payload.Tools, apiToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	for _, turn := range req.History {
		payload.Messages = append(payload.Messages, apiMessage{
			Role:    turn.Role,
			Content: []apiContent{{Type: "text", Text: turn.Content}},
		})
	}

	var content []apiContent
	for _, ctx := range req.ContextMessages {
		content = append(content, apiContent{Type: "text", Text: ctx})
	}
	content = append(content, apiContent{Type: "text", Text: req.Message})

	for _, image := range req.Images {
		if block, ok := imageBlock(image); ok {
			content = append(content, block)
		}
	}

	payload.Messages = append(payload.Messages, apiMessage{Role: "user", Content: content})

	return payload
}

func imageBlock(ref string) (apiContent, bool) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return apiContent{
			Type:   "image",
			Source: &apiImageSource{Type: "url", URL: ref},
		}, true
	}

	mimeType, data, err := providers.InlineFile(ref)
	if err != nil {
		return apiContent{}, false
	}

	return apiContent{
		Type:   "image",
		Source: &apiImageSource{Type: "base64", MediaType: mimeType, Data: data},
	}, true
}

func (a *Adapter) buildResponse(req *request.Request, text string, u apiUsage) *request.Response {
	resp := &request.Response{
		Text:     text,
		Model:    req.Model,
		Provider: registry.ProviderAnthropic,
		Usage: request.Usage{
			PromptTokens:     u.InputTokens,
			CompletionTokens: u.OutputTokens,
			TotalTokens:      u.InputTokens + u.OutputTokens,
		},
		Cost: a.Registry.Cost(req.Model, u.InputTokens, u.OutputTokens),
	}

	if req.Format == "json" || req.Format == "json_schema" {
		var v any
		if err := structured.Decode(text, &v); err == nil {
			resp.StructuredData, _ = json.Marshal(v)
		}
	}

	return resp
}

// modelIDMap carries legacy and alias Anthropic model IDs to dated
// snapshots the API accepts. Substring match, first hit wins.
var modelIDMap = []struct{ key, id string }{
	{"claude-sonnet-4", "claude-3-7-sonnet-20250219"},
	{"claude-3-7-sonnet", "claude-3-7-sonnet-20250219"},
	{"claude-3-5-sonnet", "claude-3-5-sonnet-20241022"},
	{"claude-3-5-haiku", "claude-3-5-haiku-20241022"},
	{"claude-3-haiku", "claude-3-haiku-20240307"},
	{"claude-opus-4", "claude-opus-4-20250514"},
}

func normalizeModelID(model string) string {
	m := strings.ToLower(model)
	if strings.Contains(m, "-latest") {
		return model
	}
	for _, e := range modelIDMap {
		if strings.Contains(m, e.key) {
			return e.id
		}
	}
	return model
}

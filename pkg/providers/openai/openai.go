// Package openai provides an adapter for the OpenAI API: chat completions,
// streaming, image generation, audio transcription, and speech synthesis.
package openai

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

// DefaultBaseURL is the OpenAI API endpoint (no trailing slash).
const DefaultBaseURL = "https://api.openai.com"

const completionsPath = "/v1/chat/completions"

var (
	_ providers.Adapter           = (*Adapter)(nil)
	_ providers.ToolAware         = (*Adapter)(nil)
	_ providers.ImageGenerator    = (*Adapter)(nil)
	_ providers.AudioTranscriber  = (*Adapter)(nil)
	_ providers.SpeechSynthesizer = (*Adapter)(nil)
)

// Adapter implements providers.Adapter for the OpenAI API.
type Adapter struct {
	providers.Client
	providers.ToolSet
	Registry *registry.Registry
}

// New creates an Adapter configured for the OpenAI API.
func New(apiKey string, reg *registry.Registry) *Adapter {
	a := &Adapter{Registry: reg}
	a.Client.Provider = registry.ProviderOpenAI
	a.BaseURL = DefaultBaseURL
	a.Auth = providers.Auth{Key: apiKey}

	return a
}

// Provider returns the adapter's provider tag.
func (a *Adapter) Provider() string { return registry.ProviderOpenAI }

// Chat sends a completion request and waits for the full response.
func (a *Adapter) Chat(ctx context.Context, req *request.Request) (*request.Response, error) {
	payload := a.buildChatPayload(req, false)

	var resp apiResponse
	if err := a.PostJSON(ctx, completionsPath, payload, &resp); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	msg := resp.Choices[0].Message
	text := ""
	if msg.Content != nil {
		text = *msg.Content
	}

	return a.buildResponse(req, text, msg.ToolCalls, resp.Usage), nil
}

// --- request types ---

type apiRequest struct {
	Model               string            `json:"model"`
	Messages            []apiMessage      `json:"messages"`
	MaxTokens           int               `json:"max_tokens,omitempty"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
	Temperature         *float64          `json:"temperature,omitempty"`
	ReasoningEffort     string            `json:"reasoning_effort,omitempty"`
	Tools               []apiToolDef      `json:"tools,omitempty"`
	ResponseFormat      *apiFormat        `json:"response_format,omitempty"`
	Stream              bool              `json:"stream,omitempty"`
	StreamOptions       *apiStreamOptions `json:"stream_options,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []apiContentPart
}

type apiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
}

type apiImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type apiToolDef struct {
	Type     string         `json:"type"`
	Function apiToolDefFunc `json:"function"`
}

type apiToolDefFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type apiFormat struct {
	Type string `json:"type"`
}

type apiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// --- response types ---

type apiResponse struct {
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Message      apiRespMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type apiRespMessage struct {
	Role      string        `json:"role"`
	Content   *string       `json:"content"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function apiToolFunction `json:"function"`
}

type apiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// --- conversion helpers ---

func (a *Adapter) buildChatPayload(req *request.Request, stream bool) apiRequest {
	payload := apiRequest{
		Model:  req.Model,
		Stream: stream,
	}

	if stream {
		payload.StreamOptions = &apiStreamOptions{IncludeUsage: true}
	}

	if req.Temperature != 0 {
		t := req.Temperature
		payload.Temperature = &t
	}

	if req.MaxTokens > 0 {
		// Reasoning models reject max_tokens in favor of
		// max_completion_tokens.
		if requiresMaxCompletionTokens(req.Model) {
			payload.MaxCompletionTokens = req.MaxTokens
		} else {
			payload.MaxTokens = req.MaxTokens
		}
	}

	if req.ReasoningEffort != "" {
		payload.ReasoningEffort = req.ReasoningEffort
	}

	if req.Format == "json" || req.Format == "json_schema" {
		payload.ResponseFormat = &apiFormat{Type: "json_object"}
	}

	for _, t := range a.DeclaredTools(req.Tools) {
		schema := t.InputSchema
		if schema == nil {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		payload.Tools = append(payload.Tools, apiToolDef{
			Type: "function",
			Function: apiToolDefFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		})
	}

	if req.System != "" {
		payload.Messages = append(payload.Messages, apiMessage{Role: "system", Content: req.System})
	}

	for _, turn := range req.History {
		payload.Messages = append(payload.Messages, apiMessage{Role: turn.Role, Content: turn.Content})
	}

	payload.Messages = append(payload.Messages, apiMessage{Role: "user", Content: a.userContent(req)})

	return payload
}

// userContent builds the user message: a bare string for plain text, or a
// multimodal part list when context messages or images are present.
func (a *Adapter) userContent(req *request.Request) any {
	if len(req.ContextMessages) == 0 && len(req.Images) == 0 {
		return req.Message
	}

	var parts []apiContentPart
	for _, ctx := range req.ContextMessages {
		parts = append(parts, apiContentPart{Type: "text", Text: ctx})
	}

	parts = append(parts, apiContentPart{Type: "text", Text: req.Message})

	for _, image := range req.Images {
		ref, err := providers.ImageRef(image)
		if err != nil {
			continue
		}
		parts = append(parts, apiContentPart{
			Type:     "image_url",
			ImageURL: &apiImageURL{URL: ref, Detail: "auto"},
		})
	}

	return parts
}

func (a *Adapter) buildResponse(req *request.Request, text string, calls []apiToolCall, u apiUsage) *request.Response {
	resp := &request.Response{
		Text:     text,
		Model:    req.Model,
		Provider: registry.ProviderOpenAI,
		Usage: request.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			ReasoningTokens:  u.CompletionTokensDetails.ReasoningTokens,
			TotalTokens:      u.PromptTokens + u.CompletionTokens,
		},
		Cost: a.Registry.Cost(req.Model, u.PromptTokens, u.CompletionTokens),
	}

	for _, call := range calls {
		resp.ToolCalls = append(resp.ToolCalls, request.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	if req.Format == "json" || req.Format == "json_schema" {
		var v any
		if err := structured.Decode(text, &v); err == nil {
			resp.StructuredData, _ = json.Marshal(v)
		}
	}

	return resp
}

func requiresMaxCompletionTokens(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "gpt-5") || strings.Contains(m, "o3") || strings.Contains(m, "deep-research")
}

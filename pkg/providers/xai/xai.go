// Package xai provides an adapter for the xAI API, which speaks an
// OpenAI-compatible chat completions dialect plus Live Search parameters.
package xai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/registry"
	"github.com/mireles/aibridge/pkg/request"
	"github.com/mireles/aibridge/pkg/structured"
)

// DefaultBaseURL is the xAI API endpoint (no trailing slash).
const DefaultBaseURL = "https://api.x.ai"

const (
	completionsPath  = "/v1/chat/completions"
	imagesPath       = "/v1/images/generations"
	defaultMaxTokens = 2000

	imageModel = "grok-2-image-1212"
	// Flat per-image price for grok image generation.
	imageCost = 0.07
)

var (
	_ providers.Adapter        = (*Adapter)(nil)
	_ providers.ToolAware      = (*Adapter)(nil)
	_ providers.ImageGenerator = (*Adapter)(nil)
)

// Adapter implements providers.Adapter for the xAI API.
type Adapter struct {
	providers.Client
	providers.ToolSet
	Registry *registry.Registry
}

// New creates an Adapter configured for the xAI API.
func New(apiKey string, reg *registry.Registry) *Adapter {
	a := &Adapter{Registry: reg}
	a.Client.Provider = registry.ProviderXAI
	a.BaseURL = DefaultBaseURL
	a.Auth = providers.Auth{Key: apiKey}

	return a
}

// Provider returns the adapter's provider tag.
func (a *Adapter) Provider() string { return registry.ProviderXAI }

// Chat sends a completion request and waits for the full response.
func (a *Adapter) Chat(ctx context.Context, req *request.Request) (*request.Response, error) {
	payload := a.buildPayload(req, false)

	var resp apiResponse
	if err := a.PostJSON(ctx, completionsPath, payload, &resp); err != nil {
		return nil, fmt.Errorf("xai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("xai: empty choices in response")
	}

	msg := resp.Choices[0].Message
	text := ""
	if msg.Content != nil {
		text = *msg.Content
	}

	out := a.buildResponse(req, text, resp.Usage)
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, request.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	return out, nil
}

// --- request types ---

type apiRequest struct {
	Model            string         `json:"model"`
	Messages         []apiMessage   `json:"messages"`
	MaxTokens        int            `json:"max_tokens,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	Tools            []apiToolDef   `json:"tools,omitempty"`
	ResponseFormat   *apiFormat     `json:"response_format,omitempty"`
	SearchParameters *apiSearchOpts `json:"search_parameters,omitempty"`
	Stream           bool           `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
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

type apiSearchOpts struct {
	Mode             string      `json:"mode"`
	Sources          []apiSource `json:"sources,omitempty"`
	MaxSearchResults int         `json:"max_search_results,omitempty"`
}

type apiSource struct {
	Type string `json:"type"`
}

// --- response types ---

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content   *string       `json:"content"`
			ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage apiUsage `json:"usage"`
}

type apiToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type apiUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// --- conversion helpers ---

func (a *Adapter) buildPayload(req *request.Request, stream bool) apiRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := apiRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Stream:    stream,
	}

	if req.Temperature != 0 {
		t := req.Temperature
		payload.Temperature = &t
	}

	if req.Format == "json" || req.Format == "json_schema" {
		payload.ResponseFormat = &apiFormat{Type: "json_object"}
	}

	if req.WebSearch {
		payload.SearchParameters = &apiSearchOpts{
			Mode:             "auto",
			Sources:          []apiSource{{Type: "web"}},
			MaxSearchResults: 10,
		}
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
	for _, ctx := range req.ContextMessages {
		payload.Messages = append(payload.Messages, apiMessage{Role: "system", Content: ctx})
	}
	for _, turn := range req.History {
		payload.Messages = append(payload.Messages, apiMessage{Role: turn.Role, Content: turn.Content})
	}
	payload.Messages = append(payload.Messages, apiMessage{Role: "user", Content: req.Message})

	return payload
}

func (a *Adapter) buildResponse(req *request.Request, text string, u apiUsage) *request.Response {
	resp := &request.Response{
		Text:     text,
		Model:    req.Model,
		Provider: registry.ProviderXAI,
		Usage: request.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			ReasoningTokens:  u.CompletionTokensDetails.ReasoningTokens,
			TotalTokens:      u.PromptTokens + u.CompletionTokens,
		},
		Cost: a.Registry.Cost(req.Model, u.PromptTokens, u.CompletionTokens),
	}

	if req.Format == "json" || req.Format == "json_schema" {
		var v any
		if err := structured.Decode(text, &v); err == nil {
			resp.StructuredData, _ = json.Marshal(v)
		}
	}

	return resp
}

// --- image generation ---

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage creates an image from the request prompt.
func (a *Adapter) GenerateImage(ctx context.Context, req *request.Request) (*request.Response, error) {
	payload := imageRequest{
		Model:          imageModel,
		Prompt:         req.Prompt,
		ResponseFormat: "url",
	}

	var resp imageResponse
	if err := a.PostJSON(ctx, imagesPath, payload, &resp); err != nil {
		return nil, fmt.Errorf("xai: generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("xai: no image in response")
	}

	return &request.Response{
		Text:     "Generated image: " + req.Prompt,
		Model:    imageModel,
		Provider: a.Provider(),
		Images:   []request.Image{{URL: resp.Data[0].URL, Format: "jpg"}},
		Cost:     imageCost,
	}, nil
}

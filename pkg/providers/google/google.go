// Package google provides an adapter for the Gemini API. Gemini models are
// the only ones in the catalog that ingest document binaries natively, so
// native file references are inlined as binary parts here rather than going
// through text extraction.
package google

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

// DefaultBaseURL is the Gemini API endpoint (no trailing slash).
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

var (
	_ providers.Adapter   = (*Adapter)(nil)
	_ providers.ToolAware = (*Adapter)(nil)
)

// Adapter implements providers.Adapter for the Gemini API.
type Adapter struct {
	providers.Client
	providers.ToolSet
	Registry *registry.Registry
}

// New creates an Adapter configured for the Gemini API.
func New(apiKey string, reg *registry.Registry) *Adapter {
	a := &Adapter{Registry: reg}
	a.Client.Provider = registry.ProviderGoogle
	a.BaseURL = DefaultBaseURL
	a.Auth = providers.Auth{Key: apiKey, Header: "x-goog-api-key"}

	return a
}

// Provider returns the adapter's provider tag.
func (a *Adapter) Provider() string { return registry.ProviderGoogle }

// Chat sends a completion request and waits for the full response.
func (a *Adapter) Chat(ctx context.Context, req *request.Request) (*request.Response, error) {
	payload := a.buildPayload(req)
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", req.Model)

	var resp apiResponse
	if err := a.PostJSON(ctx, path, payload, &resp); err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("google: empty candidates in response")
	}

	var text strings.Builder
	var calls []request.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			calls = append(calls, request.ToolCall{
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}

	out := a.buildResponse(req, text.String(), resp.UsageMetadata)
	out.ToolCalls = calls

	return out, nil
}

// --- request types ---

type apiRequest struct {
	Contents          []apiContent   `json:"contents"`
	SystemInstruction *apiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *apiGenConfig  `json:"generationConfig,omitempty"`
	Tools             []apiToolGroup `json:"tools,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text         string          `json:"text,omitempty"`
	InlineData   *apiInlineData  `json:"inlineData,omitempty"`
	FileData     *apiFileData    `json:"fileData,omitempty"`
	FunctionCall *apiFuncPayload `json:"functionCall,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type apiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type apiFuncPayload struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type apiGenConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type apiToolGroup struct {
	GoogleSearch         *struct{}         `json:"google_search,omitempty"`
	CodeExecution        *struct{}         `json:"code_execution,omitempty"`
	FunctionDeclarations []apiFunctionDecl `json:"function_declarations,omitempty"`
}

type apiFunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// --- response types ---

type apiResponse struct {
	Candidates []struct {
		Content apiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata apiUsage `json:"usageMetadata"`
}

type apiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// --- conversion helpers ---

func (a *Adapter) buildPayload(req *request.Request) apiRequest {
	var payload apiRequest

	if req.System != "" {
		payload.SystemInstruction = &apiContent{Parts: []apiPart{{Text: req.System}}}
	}

	config := &apiGenConfig{}
	if req.Temperature != 0 {
		t := req.Temperature
		config.Temperature = &t
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	if req.Format == "json" || req.Format == "json_schema" {
		config.ResponseMimeType = "application/json"
	}
	payload.GenerationConfig = config

	payload.Tools = a.buildTools(req)

	for _, turn := range req.History {
		role := turn.Role
		if role == "assistant" {
			role = "model"
		}
		payload.Contents = append(payload.Contents, apiContent{
			Role:  role,
			Parts: []apiPart{{Text: turn.Content}},
		})
	}

	var parts []apiPart
	for _, ctx := range req.ContextMessages {
		parts = append(parts, apiPart{Text: ctx})
	}
	parts = append(parts, apiPart{Text: req.Message})

	for _, image := range req.Images {
		if p, ok := mediaPart(image, "image/jpeg"); ok {
			parts = append(parts, p)
		}
	}
	for _, native := range req.NativeFiles {
		if p, ok := mediaPart(native, "application/octet-stream"); ok {
			parts = append(parts, p)
		}
	}

	payload.Contents = append(payload.Contents, apiContent{Role: "user", Parts: parts})

	return payload
}

func (a *Adapter) buildTools(req *request.Request) []apiToolGroup {
	var groups []apiToolGroup

	if req.WebSearch {
		groups = append(groups, apiToolGroup{GoogleSearch: &struct{}{}})
	}

	var decls []apiFunctionDecl
	for _, name := range req.Tools {
		switch name {
		case "web_search":
			if !req.WebSearch {
				groups = append(groups, apiToolGroup{GoogleSearch: &struct{}{}})
			}
		case "code_execution":
			groups = append(groups, apiToolGroup{CodeExecution: &struct{}{}})
		default:
			for _, t := range a.DeclaredTools([]string{name}) {
				decls = append(decls, apiFunctionDecl{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				})
			}
		}
	}
	if len(decls) > 0 {
		groups = append(groups, apiToolGroup{FunctionDeclarations: decls})
	}

	return groups
}

// mediaPart converts a path or URL into a binary part. Local files are
// inlined; URLs become file references with the fallback MIME type.
func mediaPart(ref, fallbackMime string) (apiPart, bool) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return apiPart{FileData: &apiFileData{FileURI: ref, MimeType: fallbackMime}}, true
	}

	mimeType, data, err := providers.InlineFile(ref)
	if err != nil {
		return apiPart{}, false
	}

	return apiPart{InlineData: &apiInlineData{MimeType: mimeType, Data: data}}, true
}

func (a *Adapter) buildResponse(req *request.Request, text string, u apiUsage) *request.Response {
	resp := &request.Response{
		Text:     text,
		Model:    req.Model,
		Provider: registry.ProviderGoogle,
		Usage: request.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.PromptTokenCount + u.CandidatesTokenCount,
		},
		Cost: a.Registry.Cost(req.Model, u.PromptTokenCount, u.CandidatesTokenCount),
	}

	if req.Format == "json" || req.Format == "json_schema" {
		var v any
		if err := structured.Decode(text, &v); err == nil {
			resp.StructuredData, _ = json.Marshal(v)
		}
	}

	return resp
}

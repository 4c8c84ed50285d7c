package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mireles/aibridge/pkg/registry"
	"github.com/mireles/aibridge/pkg/request"
	"github.com/mireles/aibridge/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := New("sk-test", registry.New())
	a.BaseURL = srv.URL
	a.HTTPClient = srv.Client()

	return a
}

func chatHandler(t *testing.T, capture *apiRequest, respBody string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, completionsPath, r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respBody))
	}
}

const chatResponse = `{
	"choices": [{"message": {"role": "assistant", "content": "Hello there"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 100, "completion_tokens": 50}
}`

func TestChat(t *testing.T) {
	var got apiRequest
	a := testAdapter(t, chatHandler(t, &got, chatResponse))

	resp, err := a.Chat(context.Background(), &request.Request{
		Message:   "Hi",
		Model:     "gpt-4.1",
		Provider:  registry.ProviderOpenAI,
		System:    "Be brief.",
		MaxTokens: 2000,
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Zero(t, got.MaxCompletionTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)

	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, registry.ProviderOpenAI, resp.Provider)
	assert.Equal(t, 100, resp.Usage.PromptTokens)
	assert.Equal(t, 50, resp.Usage.CompletionTokens)
	assert.Equal(t, 150, resp.Usage.TotalTokens)
	assert.InDelta(t, 100.0/1e6*2.00+50.0/1e6*8.00, resp.Cost, 1e-9)
}

func TestChatReasoningModelMaxTokens(t *testing.T) {
	var got apiRequest
	a := testAdapter(t, chatHandler(t, &got, chatResponse))

	_, err := a.Chat(context.Background(), &request.Request{
		Message:   "Hi",
		Model:     "gpt-5",
		MaxTokens: 20000,
	})
	require.NoError(t, err)

	assert.Zero(t, got.MaxTokens)
	assert.Equal(t, 20000, got.MaxCompletionTokens)
}

func TestChatJSONFormat(t *testing.T) {
	var got apiRequest
	respBody := `{
		"choices": [{"message": {"role": "assistant", "content": "{\"answer\": 42}"}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5}
	}`
	a := testAdapter(t, chatHandler(t, &got, respBody))

	resp, err := a.Chat(context.Background(), &request.Request{
		Message: "Answer as JSON",
		Model:   "gpt-5",
		Format:  "json",
	})
	require.NoError(t, err)

	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.JSONEq(t, `{"answer": 42}`, string(resp.StructuredData))
}

func TestChatDeclaresRequestedTools(t *testing.T) {
	var got apiRequest
	a := testAdapter(t, chatHandler(t, &got, chatResponse))
	a.SetTools([]tools.Tool{
		{Name: "web_search", Description: "Search the web", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "unrelated", Description: "Not requested"},
	})

	_, err := a.Chat(context.Background(), &request.Request{
		Message: "Hi",
		Model:   "gpt-5",
		Tools:   []string{"web_search"},
	})
	require.NoError(t, err)

	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
	assert.Equal(t, "web_search", got.Tools[0].Function.Name)
}

func TestChatParsesToolCalls(t *testing.T) {
	respBody := `{
		"choices": [{"message": {"role": "assistant", "content": null, "tool_calls": [
			{"id": "call_1", "type": "function", "function": {"name": "web_search", "arguments": "{\"query\":\"go\"}"}}
		]}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5}
	}`
	a := testAdapter(t, chatHandler(t, nil, respBody))

	resp, err := a.Chat(context.Background(), &request.Request{Message: "Hi", Model: "gpt-5"})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "web_search", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"go"}`, string(resp.ToolCalls[0].Arguments))
}

func TestChatEmptyChoices(t *testing.T) {
	a := testAdapter(t, chatHandler(t, nil, `{"choices": [], "usage": {}}`))

	_, err := a.Chat(context.Background(), &request.Request{Message: "Hi", Model: "gpt-5"})
	assert.ErrorContains(t, err, "empty choices")
}

func TestStreamChat(t *testing.T) {
	var got apiRequest
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n\n" +
				`data: {"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":2}}` + "\n\n" +
				"data: [DONE]\n\n"))
	})

	stream, err := a.StreamChat(context.Background(), &request.Request{Message: "Hi", Model: "gpt-5"})
	require.NoError(t, err)

	resp, err := stream.Collect()
	require.NoError(t, err)

	assert.True(t, got.Stream)
	require.NotNil(t, got.StreamOptions)
	assert.True(t, got.StreamOptions.IncludeUsage)

	assert.Equal(t, "Hello", resp.Text)
	assert.Equal(t, 7, resp.Usage.PromptTokens)
	assert.Equal(t, 2, resp.Usage.CompletionTokens)
}

func TestStreamChatCloseEarly(t *testing.T) {
	a := testAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			`data: {"choices":[{"delta":{"content":"one"}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":"two"}}]}` + "\n\n" +
				"data: [DONE]\n\n"))
	})

	stream, err := a.StreamChat(context.Background(), &request.Request{Message: "Hi", Model: "gpt-5"})
	require.NoError(t, err)

	fragment, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "one", fragment)

	require.NoError(t, stream.Close())
	_, err = stream.Response()
	assert.Error(t, err)
}

package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mireles/aibridge/pkg/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer creates an MCP server with the given tools, connects a
// client via in-memory transports, and returns the client. The server runs
// in a background goroutine tied to t.Cleanup.
func setupTestServer(t *testing.T, defs ...tools.Tool) *Client {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "test-server",
		Version: "1.0.0",
	}, nil)

	for _, def := range defs {
		handler := def.Handler
		server.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := handler(ctx, req.Params.Arguments)
			if err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: result}},
			}, nil
		})
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client, err := connectTransport(ctx, clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func TestTools(t *testing.T) {
	client := setupTestServer(t,
		tools.Tool{
			Name:        "search",
			Description: "Search the web",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
			Handler:     echoHandler,
		},
		tools.Tool{
			Name:        "read_file",
			Description: "Read a file",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     echoHandler,
		},
	)

	imported, err := client.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, imported, 2)

	byName := make(map[string]tools.Tool, len(imported))
	for _, tool := range imported {
		byName[tool.Name] = tool
	}

	search, ok := byName["search"]
	require.True(t, ok)
	assert.Equal(t, "Search the web", search.Description)
	assert.NotNil(t, search.Handler)

	readFile, ok := byName["read_file"]
	require.True(t, ok)
	assert.Equal(t, "Read a file", readFile.Description)
}

func TestCallSuccess(t *testing.T) {
	client := setupTestServer(t, tools.Tool{
		Name:        "echo",
		Description: "Echo input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	})

	text, err := client.Call(context.Background(), "echo", json.RawMessage(`{"msg":"hello"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"msg":"hello"}`, text)
}

func TestCallError(t *testing.T) {
	client := setupTestServer(t, tools.Tool{
		Name:        "fail",
		Description: "Always fails",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
			return "", errors.New("something went wrong")
		},
	})

	text, err := client.Call(context.Background(), "fail", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "something went wrong")
	assert.Empty(t, text)
}

func TestImportedHandlerRoundTrip(t *testing.T) {
	client := setupTestServer(t, tools.Tool{
		Name:        "greet",
		Description: "Say hello",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
			return "hello world", nil
		},
	})

	imported, err := client.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, imported, 1)

	result, err := imported[0].Handler(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)
}

func TestMergeIntoRegistry(t *testing.T) {
	client := setupTestServer(t, tools.Tool{
		Name:        "remote",
		Description: "Remote tool",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	})

	imported, err := client.Tools(context.Background())
	require.NoError(t, err)

	registry := tools.NewRegistry()
	registry.Register(imported...)

	_, ok := registry.Get("remote")
	assert.True(t, ok)
}

func TestConnectSSE_InvalidEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ConnectSSE(ctx, "http://127.0.0.1:1/invalid")
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	client := setupTestServer(t, tools.Tool{
		Name:        "noop",
		Description: "Does nothing",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	})

	assert.NoError(t, client.Close())
}

// Package mcptools imports tools from external MCP servers so they can be
// registered alongside locally defined tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mireles/aibridge/pkg/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client communicates with an MCP server using the official MCP Go SDK.
type Client struct {
	client  *mcp.Client
	session *mcp.ClientSession
}

// Connect spawns an MCP server process and returns a connected client.
// The SDK handles initialization automatically during Connect.
func Connect(ctx context.Context, command string, args ...string) (*Client, error) {
	transport := &mcp.CommandTransport{
		Command: exec.Command(command, args...), //nolint:gosec // command is caller-provided by design
	}

	return connectTransport(ctx, transport)
}

// ConnectSSE connects to an SSE-based MCP server at the given URL.
func ConnectSSE(ctx context.Context, url string) (*Client, error) {
	transport := &mcp.SSEClientTransport{Endpoint: url}

	return connectTransport(ctx, transport)
}

// connectTransport creates a Client over the given transport. Used by Connect
// and useful for testing with InMemoryTransport.
func connectTransport(ctx context.Context, transport mcp.Transport) (*Client, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "aibridge",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcptools: connect: %w", err)
	}

	return &Client{client: client, session: session}, nil
}

// Tools fetches the server's tools and returns them as registrable
// tools.Tool values. Each Tool's Handler closure calls back through Call.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcptools: list tools: %w", err)
	}

	imported := make([]tools.Tool, 0, len(result.Tools))
	for _, sdkTool := range result.Tools {
		t, err := fromSDKTool(sdkTool, c)
		if err != nil {
			return nil, fmt.Errorf("mcptools: convert tool %q: %w", sdkTool.Name, err)
		}
		imported = append(imported, t)
	}

	return imported, nil
}

// Call invokes a named tool on the server with the given arguments.
func (c *Client) Call(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcptools: unmarshal arguments: %w", err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcptools: call tool: %w", err)
	}

	text := extractText(result)

	if result.IsError {
		return "", fmt.Errorf("mcptools: tool error: %s", text)
	}

	return text, nil
}

// Close terminates the session and releases resources, including any spawned
// server subprocess.
func (c *Client) Close() error {
	return c.session.Close()
}

func fromSDKTool(sdkTool *mcp.Tool, c *Client) (tools.Tool, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return tools.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name

	return tools.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return c.Call(ctx, name, input)
		},
	}, nil
}

// extractText joins all TextContent items from a CallToolResult with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}

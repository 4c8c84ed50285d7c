package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mireles/aibridge/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func errorHandler(_ context.Context, _ json.RawMessage) (string, error) {
	return "", errors.New("tool failed")
}

func newEchoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "Echoes input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(newEchoTool("echo"))

	got, ok := r.Get("echo")
	assert.True(t, ok)
	assert.Equal(t, "echo", got.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegisterReplace(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{Name: "tool", Description: "original", Handler: echoHandler})
	r.Register(Tool{Name: "tool", Description: "replaced", Handler: echoHandler})

	got, ok := r.Get("tool")
	require.True(t, ok)
	assert.Equal(t, "replaced", got.Description)
	assert.Len(t, r.Tools(), 1)
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	r.Register(newEchoTool("a"))

	r.Remove("a")
	_, ok := r.Get("a")
	assert.False(t, ok)

	r.Remove("never-registered")
}

func TestMerge(t *testing.T) {
	r1 := NewRegistry()
	r1.Register(newEchoTool("a"), newEchoTool("b"))

	r2 := NewRegistry()
	r2.Register(newEchoTool("c"))

	r1.Merge(r2)

	assert.Len(t, r1.Tools(), 3)
	_, ok := r1.Get("c")
	assert.True(t, ok)
}

func TestResolveShapes(t *testing.T) {
	r := NewRegistry()

	names := r.Resolve(
		ByName("web_search"),
		Definition(newEchoTool("echo")),
		Func("add", "Adds numbers", echoHandler),
	)

	assert.Equal(t, []string{"web_search", "echo", "add"}, names)

	// Inline shapes were registered; the bare name was not.
	_, ok := r.Get("echo")
	assert.True(t, ok)
	_, ok = r.Get("add")
	assert.True(t, ok)
	_, ok = r.Get("web_search")
	assert.False(t, ok)
}

func TestResolveEmpty(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Resolve())
}

func TestFilterSubset(t *testing.T) {
	r := NewRegistry()
	r.Register(newEchoTool("a"), newEchoTool("b"), newEchoTool("c"))

	filtered := r.Filter([]string{"a", "c", "missing"})

	assert.Len(t, filtered.Tools(), 2)
	_, ok := filtered.Get("b")
	assert.False(t, ok)

	// Original is untouched and an empty filter is the identity.
	assert.Len(t, r.Tools(), 3)
	assert.Same(t, r, r.Filter(nil))
}

func TestCallSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(newEchoTool("echo"))

	result := r.Call(context.Background(), request.ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: json.RawMessage(`{"msg":"hi"}`),
	})
	assert.Equal(t, "call-1", result.ToolCallID)
	assert.JSONEq(t, `{"msg":"hi"}`, result.Content)
	assert.False(t, result.IsError)
}

func TestCallNotFound(t *testing.T) {
	r := NewRegistry()

	result := r.Call(context.Background(), request.ToolCall{ID: "call-2", Name: "missing"})
	assert.Equal(t, "call-2", result.ToolCallID)
	assert.Contains(t, result.Content, "tool not found: missing")
	assert.True(t, result.IsError)
}

func TestCallHandlerError(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{Name: "fail", Handler: errorHandler})

	result := r.Call(context.Background(), request.ToolCall{ID: "call-3", Name: "fail"})
	assert.Equal(t, "tool failed", result.Content)
	assert.True(t, result.IsError)
}

func TestRegistryConcurrentResolveAndCall(t *testing.T) {
	r := NewRegistry()
	r.Register(newEchoTool("echo"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("worker-%d", i)
			for j := 0; j < 50; j++ {
				names := r.Resolve(Func(name, "Per-request tool", echoHandler), ByName("echo"))
				assert.Equal(t, []string{name, "echo"}, names)

				result := r.Call(context.Background(), request.ToolCall{ID: "c", Name: "echo", Arguments: json.RawMessage("{}")})
				assert.False(t, result.IsError)

				_ = r.Tools()
			}
		}(i)
	}
	wg.Wait()

	_, ok := r.Get("worker-0")
	assert.True(t, ok)
}

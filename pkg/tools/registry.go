// Package tools holds the executable tool registry. Tools carry a JSON
// Schema plus a handler; request dispatch refers to tools by name only, so
// callers register definitions here and pass the resulting names along.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mireles/aibridge/pkg/request"
)

// Registry is a named collection of tools shared across requests. Requests
// resolve and call tools concurrently, so every method locks.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds one or more tools. A tool with an existing name is replaced.
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Name] = t
	}
}

// Remove deletes a tool by name. Removing an unknown name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name and whether it was found.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Merge registers all tools from another registry into this one. A tool with
// an existing name is replaced.
func (r *Registry) Merge(other *Registry) {
	r.Register(other.Tools()...)
}

// Tools returns all registered tools as a slice.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	return result
}

// Filter returns a registry holding only the named tools. Unknown names are
// skipped. An empty name list returns the receiver unchanged.
func (r *Registry) Filter(names []string) *Registry {
	if len(names) == 0 {
		return r
	}

	filtered := NewRegistry()
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			filtered.Register(t)
		}
	}

	return filtered
}

// Resolve collapses a caller-supplied tool list to names, registering any
// inline definitions along the way. It returns nil for an empty list.
func (r *Registry) Resolve(inputs ...Input) []string {
	if len(inputs) == 0 {
		return nil
	}

	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.def != nil {
			r.Register(*in.def)
		}
		names = append(names, in.name)
	}

	return names
}

// Call executes a tool call. A missing tool or a handler error produces an
// error-carrying result rather than a Go error, so one failing call never
// aborts the conversation turn that requested it.
func (r *Registry) Call(ctx context.Context, tc request.ToolCall) Result {
	t, ok := r.Get(tc.Name)
	if !ok {
		return Result{
			ToolCallID: tc.ID,
			Content:    fmt.Sprintf("tool not found: %s", tc.Name),
			IsError:    true,
		}
	}

	content, err := t.Handler(ctx, json.RawMessage(tc.Arguments))
	if err != nil {
		return Result{
			ToolCallID: tc.ID,
			Content:    err.Error(),
			IsError:    true,
		}
	}

	return Result{
		ToolCallID: tc.ID,
		Content:    content,
	}
}

// Result is the outcome of one tool call.
type Result struct {
	ToolCallID string
	Content    string
	IsError    bool
}

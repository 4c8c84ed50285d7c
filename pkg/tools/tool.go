package tools

import (
	"context"
	"encoding/json"
)

// Handler executes a tool with the given JSON input and returns a text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is an executable tool with a name, description, JSON Schema, and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Input is one entry of a caller-supplied tool list. Callers may reference a
// tool by name, supply a full definition, or wrap a plain function; all three
// shapes collapse to a name during registration.
type Input struct {
	name string
	def  *Tool
}

// ByName references an already-registered (or provider-builtin) tool.
func ByName(name string) Input {
	return Input{name: name}
}

// Definition supplies a complete tool to register.
func Definition(t Tool) Input {
	return Input{name: t.Name, def: &t}
}

// Func wraps a plain function as a tool with an open object schema.
func Func(name, description string, fn Handler) Input {
	return Definition(Tool{
		Name:        name,
		Description: description,
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     fn,
	})
}

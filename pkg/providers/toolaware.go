package providers

import (
	"sync"

	"github.com/mireles/aibridge/pkg/tools"
)

// ToolAware is an optional interface adapters implement to receive tool
// declarations. The orchestrator calls SetTools before dispatch so the
// adapter can declare schemas for the tool names a request carries.
type ToolAware interface {
	SetTools(tools []tools.Tool)
}

// ToolSet holds an adapter's declared tools. SetTools can land while
// requests are in flight, so reads and writes go through a lock. Adapters
// embed it to satisfy ToolAware.
type ToolSet struct {
	mu    sync.RWMutex
	tools []tools.Tool
}

// SetTools replaces the declared tool set.
func (s *ToolSet) SetTools(ts []tools.Tool) {
	s.mu.Lock()
	s.tools = ts
	s.mu.Unlock()
}

// DeclaredTools filters the declared set down to the requested names.
func (s *ToolSet) DeclaredTools(names []string) []tools.Tool {
	s.mu.RLock()
	declared := s.tools
	s.mu.RUnlock()

	return DeclaredTools(declared, names)
}

// DeclaredTools filters declared tools down to the names a request asked
// for. Names with no declaration are kept out of the wire payload.
func DeclaredTools(declared []tools.Tool, names []string) []tools.Tool {
	if len(names) == 0 {
		return nil
	}

	byName := make(map[string]tools.Tool, len(declared))
	for _, t := range declared {
		byName[t.Name] = t
	}

	selected := make([]tools.Tool, 0, len(names))
	for _, name := range names {
		if t, ok := byName[name]; ok {
			selected = append(selected, t)
		}
	}

	return selected
}

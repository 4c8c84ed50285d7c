// Package router maps dispatch-ready requests onto the active provider
// adapters. The adapter set is built once from configured credentials and
// never changes afterwards; requests either name a provider explicitly or
// are matched against model-name keywords.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/registry"
	"github.com/mireles/aibridge/pkg/request"
	"github.com/mireles/aibridge/pkg/tools"
)

// routeRules orders keyword matching by provider priority. First provider
// with a keyword hit and an active adapter wins.
var routeRules = []struct {
	provider string
	keywords []string
}{
	{registry.ProviderOpenAI, []string{"gpt", "dall-e", "whisper", "tts", "o3"}},
	{registry.ProviderAnthropic, []string{"claude"}},
	{registry.ProviderGoogle, []string{"gemini"}},
	{registry.ProviderXAI, []string{"grok"}},
}

// Router holds the immutable set of active adapters and dispatches requests
// to them by request type. It applies no retries; adapter errors propagate
// unmodified.
type Router struct {
	adapters map[string]providers.Adapter
	order    []string
}

// New builds a Router from the given adapters. Order is preserved: when no
// rule matches a request, the first adapter is the fallback.
func New(adapters ...providers.Adapter) *Router {
	r := &Router{adapters: make(map[string]providers.Adapter, len(adapters))}
	for _, a := range adapters {
		tag := a.Provider()
		if _, dup := r.adapters[tag]; dup {
			continue
		}
		r.adapters[tag] = a
		r.order = append(r.order, tag)
	}

	return r
}

// Providers returns the active provider tags in initialization order.
func (r *Router) Providers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Adapter returns the active adapter for a provider tag.
func (r *Router) Adapter(provider string) (providers.Adapter, bool) {
	a, ok := r.adapters[provider]
	return a, ok
}

// SetTools forwards the tool set to every adapter that accepts one.
func (r *Router) SetTools(ts []tools.Tool) {
	for _, tag := range r.order {
		if ta, ok := r.adapters[tag].(providers.ToolAware); ok {
			ta.SetTools(ts)
		}
	}
}

// Route picks the adapter for a request. An explicit provider must be in
// the active set; otherwise the model name is matched against keyword rules
// in provider priority order, falling back to the first active adapter.
func (r *Router) Route(req *request.Request) (providers.Adapter, error) {
	if len(r.order) == 0 {
		return nil, &providers.ProviderError{Message: "no providers configured"}
	}

	if req.Provider != "" {
		a, ok := r.adapters[req.Provider]
		if !ok {
			return nil, &providers.ProviderError{
				Provider: req.Provider,
				Message:  fmt.Sprintf("provider not configured (active: %s)", strings.Join(r.order, ", ")),
			}
		}
		return a, nil
	}

	model := strings.ToLower(req.Model)
	for _, rule := range routeRules {
		a, active := r.adapters[rule.provider]
		if !active {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(model, kw) {
				return a, nil
			}
		}
	}

	return r.adapters[r.order[0]], nil
}

// Dispatch routes the request and invokes the operation for its type.
// Adapters missing the needed capability produce a ProviderError.
func (r *Router) Dispatch(ctx context.Context, req *request.Request) (*request.Response, error) {
	a, err := r.Route(req)
	if err != nil {
		return nil, err
	}

	switch req.Kind() {
	case request.TypeChat:
		return a.Chat(ctx, req)
	case request.TypeImageGeneration:
		gen, ok := a.(providers.ImageGenerator)
		if !ok {
			return nil, capabilityError(a.Provider(), "image generation")
		}
		return gen.GenerateImage(ctx, req)
	case request.TypeAudioTranscription:
		tr, ok := a.(providers.AudioTranscriber)
		if !ok {
			return nil, capabilityError(a.Provider(), "audio transcription")
		}
		return tr.TranscribeAudio(ctx, req)
	case request.TypeTextToSpeech:
		sp, ok := a.(providers.SpeechSynthesizer)
		if !ok {
			return nil, capabilityError(a.Provider(), "speech synthesis")
		}
		return sp.GenerateSpeech(ctx, req)
	default:
		return nil, &providers.ProviderError{
			Provider: a.Provider(),
			Message:  fmt.Sprintf("unknown request type %q", req.Kind()),
		}
	}
}

// DispatchStream routes the request to a streaming chat call.
func (r *Router) DispatchStream(ctx context.Context, req *request.Request) (*providers.Stream, error) {
	a, err := r.Route(req)
	if err != nil {
		return nil, err
	}

	return a.StreamChat(ctx, req)
}

func capabilityError(provider, capability string) error {
	return &providers.ProviderError{
		Provider: provider,
		Message:  fmt.Sprintf("provider does not support %s", capability),
	}
}

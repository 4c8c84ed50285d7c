package providers

import (
	"context"

	"github.com/mireles/aibridge/pkg/request"
)

// Adapter is a chat-capable provider backend. Adapters translate the
// canonical request into the provider's wire format and return a canonical
// response with usage and cost filled in.
type Adapter interface {
	// Provider returns the adapter's provider tag (e.g. "openai").
	Provider() string

	// Chat sends a completion request and waits for the full response.
	Chat(ctx context.Context, req *request.Request) (*request.Response, error)

	// StreamChat sends a completion request and returns a stream of text
	// fragments. The caller must drain or close the stream.
	StreamChat(ctx context.Context, req *request.Request) (*Stream, error)
}

// ImageGenerator is implemented by adapters that can generate images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *request.Request) (*request.Response, error)
}

// AudioTranscriber is implemented by adapters that can transcribe audio.
type AudioTranscriber interface {
	TranscribeAudio(ctx context.Context, req *request.Request) (*request.Response, error)
}

// SpeechSynthesizer is implemented by adapters that can synthesize speech.
type SpeechSynthesizer interface {
	GenerateSpeech(ctx context.Context, req *request.Request) (*request.Response, error)
}

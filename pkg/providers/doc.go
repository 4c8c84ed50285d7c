// Package providers defines the adapter interface and shared plumbing for
// AI provider backends.
//
// It contains the Adapter interface with its optional capability interfaces
// (image generation, audio transcription, speech synthesis), the Client base
// struct with HTTP helpers and auth, an SSE scanner, the Stream type for
// incremental responses, and the typed provider errors.
//
// This package contains no provider-specific code; concrete adapters live in
// the openai, anthropic, google, and xai sub-packages.
package providers

// Package request defines the canonical request/response contract shared by
// every provider adapter, and the normalizer that builds a dispatch-ready
// request from raw caller inputs (attachments, history, memory, limits).
package request

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mireles/aibridge/pkg/extract"
)

// ValidationError reports malformed caller input detected before dispatch.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// Request type tags routed by the provider router.
const (
	TypeChat               = "chat"
	TypeImageGeneration    = "image_generation"
	TypeAudioTranscription = "audio_transcription"
	TypeTextToSpeech       = "text_to_speech"
)

// Turn is one prior exchange in a conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the fully normalized, dispatch-ready request. It is built fresh
// per call and never mutated once dispatch begins. The (Model, Provider)
// pair is always registry-validated before a Request reaches the router.
type Request struct {
	Type    string // One of the Type* constants; empty means TypeChat.
	Message string

	Model    string // Canonical model id.
	Provider string // Canonical provider id.

	System          string
	Temperature     float64 // 0 means provider default.
	MaxTokens       int
	ReasoningEffort string
	Tools           []string // Resolved tool names.
	Format          string   // Output format hint, e.g. "json".
	Stream          bool
	ConversationID  string
	WebSearch       bool

	Images          []string           // Absolute paths or URLs.
	Files           []string           // All normalized file paths, as given.
	NativeFiles     []string           // Binary files the model ingests directly.
	Documents       []extract.Document // Text extracted from non-native files.
	ContextMessages []string           // Memory snapshot + document blocks, in order.
	History         []Turn
	MemorySnapshot  map[string]string

	// Image generation parameters (TypeImageGeneration).
	Prompt  string
	Style   string
	Size    string
	Quality string

	// Audio parameters (TypeAudioTranscription, TypeTextToSpeech).
	AudioPath    string
	Voice        string
	Speed        float64
	OutputFormat string

	// Timestamp records when the request was built. It is excluded from
	// cache-key derivation.
	Timestamp time.Time
}

// Kind returns the request type tag, defaulting to TypeChat.
func (r *Request) Kind() string {
	if r.Type == "" {
		return TypeChat
	}
	return r.Type
}

// Validate checks the request for malformed caller input.
func (r *Request) Validate() error {
	switch r.Kind() {
	case TypeChat:
		if r.Message == "" && len(r.History) == 0 {
			return &ValidationError{Reason: "empty message with no prior history"}
		}
	case TypeImageGeneration:
		if r.Prompt == "" {
			return &ValidationError{Reason: "image generation requires a prompt"}
		}
	case TypeAudioTranscription:
		if r.AudioPath == "" {
			return &ValidationError{Reason: "audio transcription requires an audio path"}
		}
	case TypeTextToSpeech:
		if r.Message == "" {
			return &ValidationError{Reason: "text to speech requires text"}
		}
	}

	return nil
}

// Usage breaks out token accounting for one response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Image is a generated image, carried by URL or inline bytes.
type Image struct {
	URL    string `json:"url,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Format string `json:"format,omitempty"`
}

// Response is the canonical response shape every adapter must return.
type Response struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	Model    string `json:"model"`
	Provider string `json:"provider"`

	Usage Usage   `json:"usage"`
	Cost  float64 `json:"cost"`

	ToolCalls      []ToolCall      `json:"tool_calls,omitempty"`
	StructuredData json.RawMessage `json:"structured_data,omitempty"`
	Images         []Image         `json:"images,omitempty"`
	Audio          []byte          `json:"audio,omitempty"`
	AudioFormat    string          `json:"audio_format,omitempty"`

	ConversationID string        `json:"conversation_id,omitempty"`
	Cached         bool          `json:"cached,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	ResponseTime   time.Duration `json:"response_time,omitempty"`
}

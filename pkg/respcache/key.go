package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mireles/aibridge/pkg/request"
)

// keyPayload is the fixed subset of request fields that participates in
// cache-key derivation. Struct (not map) serialization gives a stable field
// order, so equal requests always hash identically. Fields outside this
// subset, most notably the request timestamp, never affect the key.
type keyPayload struct {
	Message        string   `json:"message,omitempty"`
	Model          string   `json:"model,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	System         string   `json:"system,omitempty"`
	Temperature    float64  `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	Tools          []string `json:"tools,omitempty"`
	Format         string   `json:"format,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Files          []string `json:"files,omitempty"`
	NativeFiles    []string `json:"native_files,omitempty"`
	Images         []string `json:"images,omitempty"`
}

// Key derives the deterministic cache key for a normalized request. File and
// image paths are expected to be absolute already (the normalizer resolves
// them), so two calls naming the same file always agree.
func Key(req *request.Request) string {
	payload := keyPayload{
		Message:        req.Message,
		Model:          req.Model,
		Provider:       req.Provider,
		System:         req.System,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		Tools:          req.Tools,
		Format:         req.Format,
		ConversationID: req.ConversationID,
		Files:          req.Files,
		NativeFiles:    req.NativeFiles,
		Images:         req.Images,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// keyPayload contains only marshalable types; this cannot fail.
		panic(err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:16])
}

package respcache_test

import (
	"testing"
	"time"

	"github.com/mireles/aibridge/pkg/request"
	"github.com/mireles/aibridge/pkg/respcache"
	"github.com/stretchr/testify/assert"
)

func baseRequest() *request.Request {
	return &request.Request{
		Message:     "hello",
		Model:       "gpt-5",
		Provider:    "openai",
		System:      "be brief",
		Temperature: 0.7,
		MaxTokens:   2000,
		Tools:       []string{"calculator"},
		Format:      "json",
		Files:       []string{"/abs/a.txt"},
	}
}

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, respcache.Key(baseRequest()), respcache.Key(baseRequest()))
}

// Fields outside the key subset must not affect the key.
func TestKey_IgnoresNonSubsetFields(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Timestamp = time.Now().Add(time.Hour)
	b.Stream = true
	b.History = []request.Turn{{Role: "user", Content: "earlier"}}
	b.MemorySnapshot = map[string]string{"k": "v"}

	assert.Equal(t, respcache.Key(a), respcache.Key(b))
}

func TestKey_SensitiveToSubsetFields(t *testing.T) {
	mutations := []func(*request.Request){
		func(r *request.Request) { r.Message = "different" },
		func(r *request.Request) { r.Model = "claude-sonnet-4" },
		func(r *request.Request) { r.Provider = "anthropic" },
		func(r *request.Request) { r.System = "" },
		func(r *request.Request) { r.Temperature = 0.2 },
		func(r *request.Request) { r.MaxTokens = 100 },
		func(r *request.Request) { r.Tools = nil },
		func(r *request.Request) { r.Format = "" },
		func(r *request.Request) { r.ConversationID = "conv-1" },
		func(r *request.Request) { r.Files = []string{"/abs/b.txt"} },
		func(r *request.Request) { r.NativeFiles = []string{"/abs/a.pdf"} },
		func(r *request.Request) { r.Images = []string{"/abs/cat.png"} },
	}

	base := respcache.Key(baseRequest())
	for i, mutate := range mutations {
		r := baseRequest()
		mutate(r)
		assert.NotEqual(t, base, respcache.Key(r), "mutation %d", i)
	}
}

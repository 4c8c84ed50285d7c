package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestAuthDefaults(t *testing.T) {
	c := &Client{Provider: "openai", BaseURL: "https://api.example.com", Auth: Auth{Key: "sk-test"}}

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/v1/chat", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1/chat", req.URL.String())
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
}

func TestNewRequestCustomAuthHeader(t *testing.T) {
	c := &Client{
		Provider: "anthropic",
		BaseURL:  "https://api.example.com",
		Auth:     Auth{Key: "sk-ant", Header: "x-api-key"},
		Headers:  map[string]string{"anthropic-version": "2023-06-01"},
	}

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/v1/messages", nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", req.Header.Get("x-api-key"))
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
}

func TestPostJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	c := &Client{Provider: "openai", BaseURL: srv.URL, HTTPClient: srv.Client()}

	var dest struct {
		Answer string `json:"answer"`
	}
	err := c.PostJSON(context.Background(), "/v1/chat", map[string]string{"q": "hi"}, &dest)
	require.NoError(t, err)
	assert.Equal(t, "ok", dest.Answer)
}

func TestPostJSONRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c := &Client{Provider: "openai", BaseURL: srv.URL, HTTPClient: srv.Client()}

	err := c.PostJSON(context.Background(), "/v1/chat", nil, nil)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "openai", rle.Provider)
	assert.Equal(t, 30*time.Second, rle.RetryAfter)
	assert.Contains(t, rle.Body, "slow down")
}

func TestPostJSONServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := &Client{Provider: "xai", BaseURL: srv.URL, HTTPClient: srv.Client()}

	err := c.PostJSON(context.Background(), "/v1/chat", nil, nil)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "xai", pe.Provider)
	assert.Contains(t, pe.Message, "500")
	assert.Contains(t, pe.Message, "boom")
}

func TestPostStreamLeavesBodyOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"delta\":\"hi\"}\n\ndata: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := &Client{Provider: "openai", BaseURL: srv.URL, HTTPClient: srv.Client()}

	resp, err := c.PostStream(context.Background(), "/v1/chat", map[string]bool{"stream": true})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	scanner := NewSSEScanner(resp.Body)
	payload, err := scanner.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"delta":"hi"}`, payload)
}

func TestPostStreamNon2xxClosesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := &Client{Provider: "google", BaseURL: srv.URL, HTTPClient: srv.Client()}

	_, err := c.PostStream(context.Background(), "/v1/chat", nil)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Message, "bad request")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, 15*time.Second, ParseRetryAfter("15"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("not-a-value"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := ParseRetryAfter(future)
	assert.Greater(t, d, 50*time.Second)

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), ParseRetryAfter(past))
}

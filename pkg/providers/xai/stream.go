package xai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/request"
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *apiUsage `json:"usage"`
}

// StreamChat sends a completion request and returns a stream of text
// fragments.
func (a *Adapter) StreamChat(ctx context.Context, req *request.Request) (*providers.Stream, error) {
	payload := a.buildPayload(req, true)

	resp, err := a.PostStream(ctx, completionsPath, payload)
	if err != nil {
		return nil, fmt.Errorf("xai: %w", err)
	}

	scanner := providers.NewSSEScanner(resp.Body)
	var usage apiUsage

	recv := func() (string, error) {
		for {
			data, err := scanner.Next()
			if err != nil {
				return "", err
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return "", fmt.Errorf("xai: decode stream chunk: %w", err)
			}

			if chunk.Usage != nil {
				usage = *chunk.Usage
			}

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				return chunk.Choices[0].Delta.Content, nil
			}
		}
	}

	finish := func(text string) (*request.Response, error) {
		return a.buildResponse(req, text, usage), nil
	}

	stop := func() error {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return resp.Body.Close()
	}

	return providers.NewStream(recv, finish, stop), nil
}

package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/request"
)

// streamEvent covers the Messages API SSE event types this adapter cares
// about: message_start carries input token usage, content_block_delta
// carries text, message_delta carries output token usage, message_stop ends
// the sequence.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage apiUsage `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *apiUsage `json:"usage"`
}

// StreamChat sends a completion request and returns a stream of text
// fragments.
func (a *Adapter) StreamChat(ctx context.Context, req *request.Request) (*providers.Stream, error) {
	payload := a.buildPayload(req, true)

	resp, err := a.PostStream(ctx, messagesPath, payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	scanner := providers.NewSSEScanner(resp.Body)
	var usage apiUsage

	recv := func() (string, error) {
		for {
			data, err := scanner.Next()
			if err != nil {
				return "", err
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				return "", fmt.Errorf("anthropic: decode stream event: %w", err)
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					usage.InputTokens = event.Message.Usage.InputTokens
				}
			case "content_block_delta":
				if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					return event.Delta.Text, nil
				}
			case "message_delta":
				if event.Usage != nil {
					usage.OutputTokens = event.Usage.OutputTokens
				}
			case "message_stop":
				return "", io.EOF
			}
			// ping, content_block_start, content_block_stop: keep reading.
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

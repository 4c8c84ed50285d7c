package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/request"
)

// StreamChat sends a completion request and returns a stream of text
// fragments. Usage metadata accumulates across chunks; the final chunk
// carries the complete counts.
func (a *Adapter) StreamChat(ctx context.Context, req *request.Request) (*providers.Stream, error) {
	payload := a.buildPayload(req)
	path := fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse", req.Model)

	resp, err := a.PostStream(ctx, path, payload)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	scanner := providers.NewSSEScanner(resp.Body)
	var usage apiUsage

	recv := func() (string, error) {
		for {
			data, err := scanner.Next()
			if err != nil {
				return "", err
			}

			var chunk apiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return "", fmt.Errorf("google: decode stream chunk: %w", err)
			}

			if chunk.UsageMetadata.PromptTokenCount > 0 {
				usage = chunk.UsageMetadata
			}

			if len(chunk.Candidates) > 0 {
				var text string
				for _, part := range chunk.Candidates[0].Content.Parts {
					text += part.Text
				}
				if text != "" {
					return text, nil
				}
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

package orchestrator

import (
	"context"

	"github.com/mireles/aibridge/pkg/request"
)

// DefaultBatchConcurrency bounds batch fan-out when no limit is given.
const DefaultBatchConcurrency = 5

// BatchResult is one slot of a batch: either a response or that slot's
// error. Slots are independent; one failure never aborts its siblings.
type BatchResult struct {
	Response *request.Response
	Err      error
}

// BatchChat dispatches one chat call per message with bounded concurrency
// and returns results in input order. Options from base apply to every
// message. Cancelling the context stops unstarted slots; incomplete slots
// report the context error and are never billed.
func (o *Orchestrator) BatchChat(ctx context.Context, messages []string, base ChatRequest, maxConcurrent int) []BatchResult {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultBatchConcurrency
	}

	results := make([]BatchResult, len(messages))
	sem := make(chan struct{}, maxConcurrent)
	done := make(chan int)

	for i, msg := range messages {
		go func(slot int, message string) {
			defer func() { done <- slot }()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[slot].Err = ctx.Err()
				return
			}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[slot].Err = err
				return
			}

			cr := base
			cr.Message = message
			results[slot].Response, results[slot].Err = o.Chat(ctx, cr)
		}(i, msg)
	}

	for range messages {
		<-done
	}

	return results
}

package orchestrator

import (
	"context"
	"time"

	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/request"
)

// StreamChat dispatches a streaming chat call. Responses are never served
// from or written to the cache, and usage is recorded only when the stream
// runs to completion: a cancelled or failed stream bills nothing.
func (o *Orchestrator) StreamChat(ctx context.Context, cr ChatRequest) (*providers.Stream, error) {
	req, err := o.buildRequest(ctx, cr, true)
	if err != nil {
		return nil, err
	}

	if err := o.checkBudget(ctx, req); err != nil {
		return nil, err
	}

	started := time.Now()
	inner, err := o.router.DispatchStream(ctx, req)
	if err != nil {
		return nil, err
	}

	recv := func() (string, error) {
		fragment, err := inner.Recv()
		if err != nil {
			return "", err
		}
		if cr.OnFragment != nil {
			cr.OnFragment(fragment)
		}
		return fragment, nil
	}

	finish := func(string) (*request.Response, error) {
		resp, err := inner.Response()
		if err != nil {
			return nil, err
		}
		o.finalize(resp, req, started)
		o.recordUsage(ctx, resp, req.Kind())
		if cr.OnComplete != nil {
			cr.OnComplete(resp)
		}
		return resp, nil
	}

	return providers.NewStream(recv, finish, inner.Close), nil
}

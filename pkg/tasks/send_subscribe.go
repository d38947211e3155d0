package tasks

import (
	"context"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
	"github.com/driftwood-labs/a2a-core/pkg/executor"
	"github.com/driftwood-labs/a2a-core/pkg/queue"
	"github.com/driftwood-labs/a2a-core/pkg/result"
)

// streamBufferSize bounds how far a slow SSE writer can lag the Event Bus
// before SendMessageStream starts dropping on behalf of the transport layer.
const streamBufferSize = 32

// SendMessageStream is the streaming sibling of SendMessage: it drives the
// same Executor/Result Manager pipeline but forwards every event to the
// caller as it arrives instead of waiting for the terminal one (§4.7). The
// returned channel closes when the stream terminates or ctx is canceled —
// callers (the SSE transport) range over it directly.
func (s *Service) SendMessageStream(ctx context.Context, params a2a.MessageSendParams, handler executor.Handler) (<-chan a2a.Event, *errors.RpcError) {
	if rpcErr := s.Card.RequireStreaming(); rpcErr != nil {
		return nil, rpcErr
	}

	message, task, contextID, rpcErr := s.prepareSend(ctx, params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	q := queue.New(s.Bus, contextID)
	rm := result.New(s.TaskStore, &message)
	out := make(chan a2a.Event, streamBufferSize)

	// No artificial deadline for the streaming path (§4.7): the handler sees
	// the caller's own ctx, so a real client disconnect propagates to it too.
	go s.Executor.Execute(ctx, message, task, handler)
	go s.pumpStream(ctx, q, rm, out)

	return out, nil
}

// pumpStream drains q into out, reducing every event through rm along the
// way, until q closes (terminal event) or ctx is canceled.
func (s *Service) pumpStream(ctx context.Context, q *queue.Queue, rm *result.Manager, out chan<- a2a.Event) {
	defer close(out)

	for {
		select {
		case event, ok := <-q.Events():
			if !ok {
				return
			}

			if _, isDiscontinuity := event.(a2a.DiscontinuityNotice); !isDiscontinuity {
				rm.Reduce(ctx, event)
			}

			select {
			case out <- event:
			case <-ctx.Done():
				q.Stop()
				return
			}

		case <-ctx.Done():
			q.Stop()
			return
		}
	}
}

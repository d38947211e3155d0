package tasks

import (
	"context"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
	"github.com/driftwood-labs/a2a-core/pkg/queue"
)

// Resubscribe reattaches a caller to a task's live event stream: it yields
// the current snapshot immediately, then — if the task isn't already
// terminal — every subsequent event scoped to this task until one arrives
// final or ctx is canceled (§4.7).
func (s *Service) Resubscribe(ctx context.Context, params a2a.TaskIDParams) (<-chan a2a.Event, *errors.RpcError) {
	if rpcErr := s.Card.RequireStreaming(); rpcErr != nil {
		return nil, rpcErr
	}

	task, ok := s.TaskStore.Load(ctx, params.ID)
	if !ok {
		return nil, errors.ErrTaskNotFound
	}

	out := make(chan a2a.Event, streamBufferSize)

	if task.Status.State.Terminal() {
		out <- *task
		close(out)
		return out, nil
	}

	q := queue.New(s.Bus, task.ContextID)
	go s.pumpResubscribe(ctx, task, q, out)

	return out, nil
}

func (s *Service) pumpResubscribe(ctx context.Context, task *a2a.Task, q *queue.Queue, out chan<- a2a.Event) {
	defer close(out)

	select {
	case out <- *task:
	case <-ctx.Done():
		q.Stop()
		return
	}

	for {
		select {
		case event, ok := <-q.Events():
			if !ok {
				return
			}

			if !belongsToTask(event, task.ID) {
				continue
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

// belongsToTask reports whether event concerns taskID specifically, since a
// context's Event Bus stream may interleave events for sibling tasks.
func belongsToTask(event a2a.Event, taskID string) bool {
	switch e := event.(type) {
	case a2a.Task:
		return e.ID == taskID
	case a2a.StatusUpdate:
		return e.TaskID == taskID
	case a2a.ArtifactUpdate:
		return e.TaskID == taskID
	case a2a.Message:
		return e.TaskID == taskID
	case a2a.DiscontinuityNotice:
		return true
	default:
		return false
	}
}

package tasks

import (
	"context"
	"time"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
)

// CancelTask moves a non-terminal task to canceled, persists it, and
// publishes a final StatusUpdate so any live subscriber observes the
// transition (§4.7). A task already in a terminal state cannot be canceled.
func (s *Service) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, *errors.RpcError) {
	task, ok := s.TaskStore.Load(ctx, params.ID)
	if !ok {
		return nil, errors.ErrTaskNotFound
	}

	if task.Status.State.Terminal() {
		return nil, errors.ErrTaskNotCancelable
	}

	canceled := a2a.NewTextMessage(a2a.RoleAgent, "Task canceled")
	canceled.TaskID = task.ID
	canceled.ContextID = task.ContextID

	task.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Message: canceled, Timestamp: time.Now()}
	task.AppendHistory(*canceled)

	s.TaskStore.Save(ctx, task, 0)

	_ = s.Bus.Publish(ctx, a2a.StatusUpdate{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status:    task.Status,
		Final:     true,
	})

	return task, nil
}

package tasks

import (
	"context"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
)

// GetTask loads a task snapshot, trimming its history to the last
// HistoryLength entries when requested (§4.7).
func (s *Service) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, *errors.RpcError) {
	task, ok := s.TaskStore.Load(ctx, params.ID)
	if !ok {
		return nil, errors.ErrTaskNotFound
	}

	if params.HistoryLength != nil {
		trimmed := *task
		trimmed.History = task.TrimHistory(*params.HistoryLength)
		return &trimmed, nil
	}

	return task, nil
}

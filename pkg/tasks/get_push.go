package tasks

import (
	"context"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
)

// GetTaskPushNotificationConfig returns the webhook descriptor previously
// stored for a task (§4.7).
func (s *Service) GetTaskPushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) (a2a.TaskPushNotificationConfig, *errors.RpcError) {
	if rpcErr := s.Card.RequirePushNotifications(); rpcErr != nil {
		return a2a.TaskPushNotificationConfig{}, rpcErr
	}

	if _, ok := s.TaskStore.Load(ctx, params.ID); !ok {
		return a2a.TaskPushNotificationConfig{}, errors.ErrTaskNotFound
	}

	cfg, ok := s.PushStore.Get(ctx, params.ID)
	if !ok {
		return a2a.TaskPushNotificationConfig{}, errors.ErrInternal.WithMessagef("no push notification config for task %s", params.ID)
	}

	return cfg, nil
}

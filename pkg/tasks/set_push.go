package tasks

import (
	"context"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
)

// SetTaskPushNotificationConfig stores a webhook descriptor against an
// existing task. The agent never dispatches to it; storage only (§1
// Non-goals, §4.7). Echoes params back on success per the wire contract.
func (s *Service) SetTaskPushNotificationConfig(ctx context.Context, params a2a.SetTaskPushNotificationConfigParams) (a2a.TaskPushNotificationConfig, *errors.RpcError) {
	if rpcErr := s.Card.RequirePushNotifications(); rpcErr != nil {
		return a2a.TaskPushNotificationConfig{}, rpcErr
	}

	if _, ok := s.TaskStore.Load(ctx, params.TaskID); !ok {
		return a2a.TaskPushNotificationConfig{}, errors.ErrTaskNotFound
	}

	cfg := a2a.TaskPushNotificationConfig{
		TaskID:                 params.TaskID,
		PushNotificationConfig: params.PushNotificationConfig,
	}

	s.PushStore.Set(ctx, cfg)
	return cfg, nil
}

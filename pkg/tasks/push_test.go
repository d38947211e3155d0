package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
)

func TestSetPushConfig_NotSupported(t *testing.T) {
	s, srv := newTestService(t, cardWith(false, false))
	defer srv.Close()

	_, rpcErr := s.SetTaskPushNotificationConfig(context.Background(), a2a.SetTaskPushNotificationConfigParams{
		TaskID:                 "task-1",
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.invalid/hook"},
	})
	assert.NotNil(t, rpcErr)
	assert.Equal(t, -32003, rpcErr.Code)
}

func TestSetPushConfig_TaskNotFound(t *testing.T) {
	s, srv := newTestService(t, cardWith(false, true))
	defer srv.Close()

	_, rpcErr := s.SetTaskPushNotificationConfig(context.Background(), a2a.SetTaskPushNotificationConfigParams{
		TaskID:                 "missing",
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.invalid/hook"},
	})
	assert.NotNil(t, rpcErr)
	assert.Equal(t, -32001, rpcErr.Code)
}

func TestSetGetPushConfig_RoundTrip(t *testing.T) {
	s, srv := newTestService(t, cardWith(false, true))
	defer srv.Close()

	ctx := context.Background()
	task := &a2a.Task{ID: "task-1", ContextID: "ctx-1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
	s.TaskStore.Save(ctx, task, 0)

	set, rpcErr := s.SetTaskPushNotificationConfig(ctx, a2a.SetTaskPushNotificationConfigParams{
		TaskID:                 "task-1",
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.invalid/hook"},
	})
	assert.Nil(t, rpcErr)
	assert.Equal(t, "task-1", set.TaskID)
	assert.Equal(t, "https://example.invalid/hook", set.PushNotificationConfig.URL)

	got, rpcErr := s.GetTaskPushNotificationConfig(ctx, a2a.TaskIDParams{ID: "task-1"})
	assert.Nil(t, rpcErr)
	assert.Equal(t, "https://example.invalid/hook", got.PushNotificationConfig.URL)
}

func TestGetPushConfig_AbsentIsInternalError(t *testing.T) {
	s, srv := newTestService(t, cardWith(false, true))
	defer srv.Close()

	ctx := context.Background()
	task := &a2a.Task{ID: "task-2", ContextID: "ctx-2", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
	s.TaskStore.Save(ctx, task, 0)

	_, rpcErr := s.GetTaskPushNotificationConfig(ctx, a2a.TaskIDParams{ID: "task-2"})
	assert.NotNil(t, rpcErr)
	assert.Equal(t, -32603, rpcErr.Code)
}

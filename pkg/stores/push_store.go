package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
)

const pushConfigTTLSeconds = 0 // inherits the adapter's default TTL

// PushConfigStore persists TaskPushNotificationConfig under
// push-config:{taskId}. It only stores configuration; it never attempts
// delivery (GLOSSARY, §1 Non-goals).
type PushConfigStore struct {
	adapter *cache.Adapter
}

func NewPushConfigStore(adapter *cache.Adapter) *PushConfigStore {
	return &PushConfigStore{adapter: adapter}
}

func pushConfigKey(taskID string) string {
	return fmt.Sprintf("push-config:%s", taskID)
}

// Set stores cfg, swallowing failures the same way the task store does.
func (s *PushConfigStore) Set(ctx context.Context, cfg a2a.TaskPushNotificationConfig) {
	env, err := s.adapter.SetJSON(ctx, pushConfigKey(cfg.TaskID), cfg, pushConfigTTLSeconds)
	if err != nil {
		log.Error("push config store: save failed", "taskId", cfg.TaskID, "err", err)
		return
	}
	if !env.Success {
		log.Error("push config store: save failed", "taskId", cfg.TaskID, "err", env.Err)
	}
}

// Get returns the stored config for taskID, or (zero, false) when absent or
// on error.
func (s *PushConfigStore) Get(ctx context.Context, taskID string) (a2a.TaskPushNotificationConfig, bool) {
	env, err := s.adapter.Get(ctx, pushConfigKey(taskID), cache.FormatJSON)
	if err != nil {
		log.Error("push config store: load failed", "taskId", taskID, "err", err)
		return a2a.TaskPushNotificationConfig{}, false
	}
	if !env.Success {
		return a2a.TaskPushNotificationConfig{}, false
	}

	var cfg a2a.TaskPushNotificationConfig
	if err := json.Unmarshal(env.Data, &cfg); err != nil {
		log.Error("push config store: unmarshal failed", "taskId", taskID, "err", err)
		return a2a.TaskPushNotificationConfig{}, false
	}
	return cfg, true
}

// Package stores persists Tasks and push-notification configs on top of the
// cache adapter, externalizing large artifact payloads so the primary task
// record stays small (§4.2).
package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
)

const defaultTaskTTLSeconds = 3600

// TaskStore saves and loads Tasks, externalizing file/data artifact parts to
// derived cache keys.
type TaskStore struct {
	adapter *cache.Adapter
}

// NewTaskStore wraps adapter, leaving its ThrowOnError setting as it is:
// Save and Load log and swallow failures in either adapter mode per §4.2's
// failure policy, never raising them to callers.
func NewTaskStore(adapter *cache.Adapter) *TaskStore {
	return &TaskStore{adapter: adapter}
}

// Save persists task under key=task.ID, first externalizing any inline
// file/data payloads. Errors are logged and swallowed (§4.2).
func (s *TaskStore) Save(ctx context.Context, task *a2a.Task, ttlSeconds int) {
	if task == nil {
		return
	}
	if ttlSeconds <= 0 {
		ttlSeconds = defaultTaskTTLSeconds
	}

	clone, err := cloneTask(task)
	if err != nil {
		log.Error("task store: clone failed", "taskId", task.ID, "err", err)
		return
	}
	s.externalize(ctx, clone, ttlSeconds)

	data, err := json.Marshal(clone)
	if err != nil {
		log.Error("task store: marshal failed", "taskId", task.ID, "err", err)
		return
	}

	env, err := s.adapter.SetJSON(ctx, clone.ID, json.RawMessage(data), ttlSeconds)
	if err != nil {
		log.Error("task store: save failed", "taskId", task.ID, "err", err)
	} else if !env.Success {
		log.Error("task store: save failed", "taskId", task.ID, "err", env.Err)
	}
}

// Load fetches and rehydrates the task stored under taskID. It returns
// (nil, false) on any miss or error, never surfacing the failure (§4.2).
func (s *TaskStore) Load(ctx context.Context, taskID string) (*a2a.Task, bool) {
	env, err := s.adapter.Get(ctx, taskID, cache.FormatJSON)
	if err != nil {
		log.Error("task store: load failed", "taskId", taskID, "err", err)
		return nil, false
	}
	if !env.Success {
		if env.Err != nil {
			log.Error("task store: load failed", "taskId", taskID, "err", env.Err)
		}
		return nil, false
	}

	var task a2a.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		log.Error("task store: unmarshal failed", "taskId", taskID, "err", err)
		return nil, false
	}

	s.rehydrate(ctx, &task)
	return &task, true
}

// Delete removes the stored task. Externalized artifact blobs are left to
// expire via their own TTL rather than chased down individually.
func (s *TaskStore) Delete(ctx context.Context, taskID string) {
	if _, err := s.adapter.Delete(ctx, taskID); err != nil {
		log.Warn("task store: delete failed", "taskId", taskID, "err", err)
	}
}

// externalize mutates clone in place, replacing file/data part payloads with
// a metadata.cacheKey pointer (§4.2). clone must not alias the caller's Task.
func (s *TaskStore) externalize(ctx context.Context, clone *a2a.Task, ttlSeconds int) {
	for ai := range clone.Artifacts {
		for pi := range clone.Artifacts[ai].Parts {
			part := &clone.Artifacts[ai].Parts[pi]
			switch {
			case part.Type == a2a.PartTypeFile && part.File != nil && part.File.Bytes != "":
			case part.Type == a2a.PartTypeData && part.Data != nil:
			default:
				continue
			}

			key := fmt.Sprintf("artifact:%s:%s:%s", clone.ID, clone.Artifacts[ai].ArtifactID, uuid.NewString())

			var payload []byte
			switch part.Type {
			case a2a.PartTypeFile:
				payload = []byte(part.File.Bytes)
			case a2a.PartTypeData:
				marshaled, err := json.Marshal(part.Data)
				if err != nil {
					log.Error("task store: externalize data part failed", "taskId", clone.ID, "err", err)
					continue
				}
				payload = marshaled
			}

			if _, err := s.adapter.Set(ctx, key, payload, cache.SetOptions{TTLSeconds: ttlSeconds}); err != nil {
				log.Error("task store: externalize blob write failed", "taskId", clone.ID, "key", key, "err", err)
				continue
			}

			if part.Metadata == nil {
				part.Metadata = map[string]any{}
			}
			part.Metadata["cacheKey"] = key
			part.File = clearedFilePart(part.File)
			part.Data = nil
		}
	}
}

// rehydrate reverses externalize in place: every part carrying a
// metadata.cacheKey is fetched back and the pointer is stripped from the
// surfaced metadata.
func (s *TaskStore) rehydrate(ctx context.Context, task *a2a.Task) {
	for ai := range task.Artifacts {
		for pi := range task.Artifacts[ai].Parts {
			part := &task.Artifacts[ai].Parts[pi]
			key, ok := part.Metadata["cacheKey"].(string)
			if !ok {
				continue
			}

			env, err := s.adapter.Get(ctx, key, cache.FormatRaw)
			if err != nil {
				log.Error("task store: rehydrate blob read failed", "taskId", task.ID, "key", key, "err", err)
				delete(part.Metadata, "cacheKey")
				continue
			}
			if !env.Success {
				log.Error("task store: rehydrate blob missing", "taskId", task.ID, "key", key, "err", env.Err)
				delete(part.Metadata, "cacheKey")
				continue
			}

			switch part.Type {
			case a2a.PartTypeFile:
				if part.File == nil {
					part.File = &a2a.FilePart{}
				}
				part.File.Bytes = string(env.Data)
			case a2a.PartTypeData:
				var data map[string]any
				if err := json.Unmarshal(env.Data, &data); err == nil {
					part.Data = data
				}
			}

			delete(part.Metadata, "cacheKey")
		}
	}
}

// cloneTask deep-copies task via a JSON round-trip so externalize can mutate
// the result without aliasing the caller's in-memory Task.
func cloneTask(task *a2a.Task) (*a2a.Task, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	var clone a2a.Task
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

func clearedFilePart(f *a2a.FilePart) *a2a.FilePart {
	if f == nil {
		return nil
	}
	cleared := *f
	cleared.Bytes = ""
	return &cleared
}

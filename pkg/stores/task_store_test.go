package stores

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
)

// fakeCacheServer is a minimal in-memory stand-in for the cache service used
// to exercise TaskStore without a real backend.
func fakeCacheServer(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	values := map[string][]byte{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/cache/"):]
		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			v, ok := values[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(v)
		case http.MethodPut:
			body := make([]byte, r.ContentLength)
			r.Body.Read(body)
			values[key] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			delete(values, key)
			w.WriteHeader(http.StatusOK)
		}
	}))
}

func TestTaskStore_SaveLoad_RoundTrip(t *testing.T) {
	srv := fakeCacheServer(t)
	defer srv.Close()

	store := NewTaskStore(cache.New(srv.URL))
	ctx := context.Background()

	task := &a2a.Task{
		ID:        "task-1",
		ContextID: "ctx-1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
	}

	store.Save(ctx, task, 0)
	loaded, ok := store.Load(ctx, "task-1")

	assert.True(t, ok)
	assert.Equal(t, task.ID, loaded.ID)
	assert.Equal(t, task.ContextID, loaded.ContextID)
	assert.Equal(t, a2a.TaskStateCompleted, loaded.Status.State)
}

func TestTaskStore_Load_Absent(t *testing.T) {
	srv := fakeCacheServer(t)
	defer srv.Close()

	store := NewTaskStore(cache.New(srv.URL))
	loaded, ok := store.Load(context.Background(), "missing")

	assert.False(t, ok)
	assert.Nil(t, loaded)
}

func TestTaskStore_ExternalizesFilePart(t *testing.T) {
	srv := fakeCacheServer(t)
	defer srv.Close()

	store := NewTaskStore(cache.New(srv.URL))
	ctx := context.Background()

	name := "report.pdf"
	mime := "application/pdf"
	task := &a2a.Task{
		ID:        "task-2",
		ContextID: "ctx-2",
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
		Artifacts: []a2a.Artifact{{
			ArtifactID: "artifact-1",
			Parts: []a2a.Part{{
				Type: a2a.PartTypeFile,
				File: &a2a.FilePart{Name: &name, MimeType: &mime, Bytes: "aGVsbG8="},
			}},
		}},
	}

	store.Save(ctx, task, 0)
	loaded, ok := store.Load(ctx, "task-2")

	assert.True(t, ok)
	assert.Len(t, loaded.Artifacts, 1)
	assert.Equal(t, "aGVsbG8=", loaded.Artifacts[0].Parts[0].File.Bytes)
	_, hasCacheKey := loaded.Artifacts[0].Parts[0].Metadata["cacheKey"]
	assert.False(t, hasCacheKey)
}

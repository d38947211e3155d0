package tasks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/bus"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
	"github.com/driftwood-labs/a2a-core/pkg/executor"
	"github.com/driftwood-labs/a2a-core/pkg/stores"
)

// fakeBackend is a minimal in-memory stand-in for the cache-and-topics
// service: it backs /cache/* key-value operations and replays every
// /topics/{topic}/publish call back out of /topics/{topic}/subscribe, so the
// Event Bus's poller actually observes what the Executor publishes.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	values := map[string][]byte{}
	topics := map[string][]cache.TopicItem{}

	topicName := func(path, suffix string) string {
		return strings.TrimSuffix(strings.TrimPrefix(path, "/topics/"), suffix)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/cache/"):
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

		case strings.HasSuffix(r.URL.Path, "/subscribe"):
			topic := topicName(r.URL.Path, "/subscribe")
			seq, _ := strconv.Atoi(r.URL.Query().Get("seq"))

			mu.Lock()
			var page []cache.TopicItem
			for _, item := range topics[topic] {
				if item.TopicSequenceNumber != nil && *item.TopicSequenceNumber >= seq {
					page = append(page, item)
				}
			}
			mu.Unlock()

			json.NewEncoder(w).Encode(cache.SubscribeResult{Items: page})

		case strings.HasSuffix(r.URL.Path, "/publish"):
			topic := topicName(r.URL.Path, "/publish")
			var body struct {
				Payload string `json:"payload"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			mu.Lock()
			seq := len(topics[topic])
			topics[topic] = append(topics[topic], cache.TopicItem{Payload: body.Payload, TopicSequenceNumber: &seq})
			mu.Unlock()

			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func cardWith(streaming, push bool) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:    "test-agent",
		URL:     "http://test-agent.invalid",
		Version: "0.0.0",
		Capabilities: a2a.AgentCapabilities{
			Streaming:         streaming,
			PushNotifications: push,
		},
	}
}

func newTestService(t *testing.T, card *a2a.AgentCard) (*Service, *httptest.Server) {
	t.Helper()
	srv := fakeBackend(t)

	adapter := cache.New(srv.URL)
	b := bus.New(adapter)
	taskStore := stores.NewTaskStore(adapter)
	pushStore := stores.NewPushConfigStore(adapter)
	exec := executor.New(b, executor.Identity{AgentName: "test-agent", AgentID: "agent-1", AgentType: executor.AgentTypeWorker})

	return New(b, taskStore, pushStore, exec, card), srv
}

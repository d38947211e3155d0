package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/bus"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
	"github.com/driftwood-labs/a2a-core/pkg/executor"
	"github.com/driftwood-labs/a2a-core/pkg/stores"
	"github.com/driftwood-labs/a2a-core/pkg/tasks"
)

// fakeBackend mirrors pkg/tasks' test double: an in-memory stand-in for the
// cache-and-topics service that replays /topics/{topic}/publish calls back
// out of /topics/{topic}/subscribe, good enough to drive a Service (and the
// Event Bus poller underneath it) end to end.
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

func echoHandler(ctx context.Context, m a2a.Message, task *a2a.Task, publish executor.PublishUpdate) (executor.Result, error) {
	return executor.TextResult("echo: " + m.Parts[0].Text), nil
}

// startTestServer builds a Server from a fresh fake backend and brings it up
// on addr via the real Server.Listen path (the same call the teacher's
// srv.app.Listen(...) makes), polling until it accepts connections.
func startTestServer(t *testing.T, addr string, streaming bool) (baseURL string, backend *httptest.Server) {
	t.Helper()
	backend = fakeBackend(t)
	t.Cleanup(backend.Close)

	adapter := cache.New(backend.URL)
	b := bus.New(adapter)
	taskStore := stores.NewTaskStore(adapter)
	pushStore := stores.NewPushConfigStore(adapter)
	exec := executor.New(b, executor.Identity{AgentName: "test-agent", AgentID: "agent-1", AgentType: executor.AgentTypeWorker})

	card := &a2a.AgentCard{
		Name:    "test-agent",
		URL:     "http://test-agent.invalid",
		Version: "0.0.0",
		Capabilities: a2a.AgentCapabilities{
			Streaming: streaming,
		},
	}

	svc := tasks.New(b, taskStore, pushStore, exec, card)
	server := New(svc, echoHandler)

	go server.Listen(addr)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := (&net.Dialer{Timeout: 50 * time.Millisecond}).Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return "http://" + addr, backend
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server on %s did not come up in time", addr)
	return "", nil
}

func TestAgentCardEndpoint(t *testing.T) {
	base, _ := startTestServer(t, "127.0.0.1:38301", false)

	resp, err := http.Get(base + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "test-agent", card.Name)
}

func TestOptionsPreflight_ReturnsNoContent(t *testing.T) {
	base, _ := startTestServer(t, "127.0.0.1:38306", false)

	req, err := http.NewRequest(http.MethodOptions, base+"/", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHandleRPC_UnknownMethod(t *testing.T) {
	base, _ := startTestServer(t, "127.0.0.1:38302", false)

	body := `{"jsonrpc":"2.0","id":1,"method":"tasks/bogus","params":{}}`
	resp, err := http.Post(base+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, -32601, rpcResp.Error.Code)
}

func TestHandleRPC_SendMessage_ReturnsCompletedTask(t *testing.T) {
	base, _ := startTestServer(t, "127.0.0.1:38303", false)

	body := `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"messageId":"m1","role":"user","parts":[{"type":"text","text":"hi"}]}}}`
	resp, err := http.Post(base+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.Nil(t, rpcResp.Error)

	var task a2a.Task
	require.NoError(t, json.Unmarshal(rpcResp.Result, &task))
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
}

func TestHandleRPC_MessageStream_NotSupported(t *testing.T) {
	base, _ := startTestServer(t, "127.0.0.1:38304", false)

	body := `{"jsonrpc":"2.0","id":1,"method":"message/stream","params":{"message":{"messageId":"m1","role":"user","parts":[{"type":"text","text":"hi"}]}}}`
	resp, err := http.Post(base+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, -32004, rpcResp.Error.Code)
}

func TestHandleRPC_MessageStream_FramesSSERecords(t *testing.T) {
	base, _ := startTestServer(t, "127.0.0.1:38305", true)

	body := `{"jsonrpc":"2.0","id":1,"method":"message/stream","params":{"message":{"messageId":"m1","role":"user","parts":[{"type":"text","text":"hi"}]}}}`
	req, err := http.NewRequest(http.MethodPost, base+"/", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for i := 0; i < 10; i++ {
		line, readErr := reader.ReadString('\n')
		if readErr != nil {
			break
		}
		lines = append(lines, line)
	}

	joined := strings.Join(lines, "")
	assert.True(t, strings.Contains(joined, "data: "), "expected at least one data record, got: %q", joined)
}

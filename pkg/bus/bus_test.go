package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
)

// scriptedTopicServer replays a fixed sequence of subscribe responses,
// regardless of the requested seq/page, to drive the poller deterministically.
func scriptedTopicServer(t *testing.T, pages [][]cache.TopicItem) *httptest.Server {
	t.Helper()
	var call int32

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(atomic.AddInt32(&call, 1)) - 1
		var items []cache.TopicItem
		if idx < len(pages) {
			items = pages[idx]
		}
		json.NewEncoder(w).Encode(cache.SubscribeResult{Items: items})
	}))
}

func intPtr(v int) *int { return &v }

func TestBus_Dispatch_DeliversDecodedMessage(t *testing.T) {
	msg := a2a.Message{MessageID: "m1", Role: a2a.RoleUser, ContextID: "ctx-1", Parts: []a2a.Part{a2a.NewTextPart("hi")}}
	payload, _ := json.Marshal(msg)
	framed, _ := json.Marshal(wireEvent{Kind: a2a.EventKindMessage, Payload: payload})

	srv := scriptedTopicServer(t, [][]cache.TopicItem{
		{{Payload: string(framed), TopicSequenceNumber: intPtr(0)}},
		{},
	})
	defer srv.Close()

	b := New(cache.New(srv.URL))
	received := make(chan a2a.Event, 1)
	b.OnContext("ctx-1", func(e a2a.Event) { received <- e })
	defer b.Close()

	select {
	case e := <-received:
		got, ok := e.(a2a.Message)
		assert.True(t, ok)
		assert.Equal(t, "m1", got.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestBus_Poll_EmitsDiscontinuityWithPreAdvanceFromSequence(t *testing.T) {
	msg := a2a.Message{MessageID: "m1", ContextID: "ctx-2", Parts: []a2a.Part{a2a.NewTextPart("hi")}}
	payload, _ := json.Marshal(msg)
	framed, _ := json.Marshal(wireEvent{Kind: a2a.EventKindMessage, Payload: payload})

	srv := scriptedTopicServer(t, [][]cache.TopicItem{
		{
			{Payload: string(framed), TopicSequenceNumber: intPtr(0)},
			{NewTopicSequence: intPtr(5), NewSequencePage: intPtr(2)},
		},
		{},
	})
	defer srv.Close()

	b := New(cache.New(srv.URL))
	received := make(chan a2a.Event, 4)
	b.OnContext("ctx-2", func(e a2a.Event) { received <- e })
	defer b.Close()

	var notice a2a.DiscontinuityNotice
	found := false
	for i := 0; i < 2 && !found; i++ {
		select {
		case e := <-received:
			if n, ok := e.(a2a.DiscontinuityNotice); ok {
				notice = n
				found = true
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for discontinuity notice")
		}
	}

	assert.True(t, found)
	assert.Equal(t, "ctx-2", notice.ContextID)
	assert.Equal(t, 1, notice.FromSequence)
	assert.Equal(t, 5, notice.ToSequence)
}

func TestBus_Publish_RequiresContextID(t *testing.T) {
	b := New(cache.New("http://unused"))
	err := b.Publish(context.Background(), a2a.Message{MessageID: "m1"})
	assert.Error(t, err)
}

func TestBus_UnregisterContext_RemovesPoller(t *testing.T) {
	srv := scriptedTopicServer(t, [][]cache.TopicItem{{}})
	defer srv.Close()

	b := New(cache.New(srv.URL))
	b.RegisterContext("ctx-3")
	_, registered := b.contexts["ctx-3"]
	assert.True(t, registered)

	b.UnregisterContext("ctx-3")
	_, stillRegistered := b.contexts["ctx-3"]
	assert.False(t, stillRegistered)
}

func TestBus_OnContext_SharedPollerSurvivesOneListenerUnregistering(t *testing.T) {
	srv := scriptedTopicServer(t, [][]cache.TopicItem{{}})
	defer srv.Close()

	b := New(cache.New(srv.URL))
	defer b.Close()

	b.OnContext("ctx-4", func(a2a.Event) {})
	b.OnContext("ctx-4", func(a2a.Event) {})

	b.UnregisterContext("ctx-4")
	_, stillRegistered := b.contexts["ctx-4"]
	assert.True(t, stillRegistered, "poller must survive while a second listener is still attached")

	b.UnregisterContext("ctx-4")
	_, registeredAfterBoth := b.contexts["ctx-4"]
	assert.False(t, registeredAfterBoth, "poller must be torn down once every listener has released")
}

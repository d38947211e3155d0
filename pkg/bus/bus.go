// Package bus implements the per-context event fan-out on top of the cache
// adapter's topics: one topic per contextId, polled for new items and
// redistributed to local listeners (§4.3).
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
)

var errMissingContextID = errors.New("event bus: publish requires a non-empty contextId")

// wireEvent frames an Event with an explicit discriminator so decodeEvent
// can recover the concrete type after a JSON round-trip through the topic.
type wireEvent struct {
	Kind    a2a.EventKind   `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

const (
	idlePollDelay  = 100 * time.Millisecond
	errorPollDelay = 500 * time.Millisecond
)

// Listener receives events for a single context, in topic sequence order.
type Listener func(event a2a.Event)

// Bus fans out events published to a context's topic to every locally
// registered listener for that context. Ordering is guaranteed within a
// context and not across contexts (§4.3).
type Bus struct {
	adapter *cache.Adapter

	mu       sync.Mutex
	contexts map[string]*contextPoller
}

type contextPoller struct {
	cancel    context.CancelFunc
	listeners []Listener
	refs      int
	mu        sync.Mutex
}

// New builds a Bus over adapter.
func New(adapter *cache.Adapter) *Bus {
	return &Bus{
		adapter:  adapter,
		contexts: make(map[string]*contextPoller),
	}
}

// Publish writes event to topic=event.ContextID(). event must carry a
// non-empty contextId.
func (b *Bus) Publish(ctx context.Context, event a2a.Event) error {
	contextID := contextIDOf(event)
	if contextID == "" {
		return errMissingContextID
	}

	inner, err := json.Marshal(event)
	if err != nil {
		return err
	}
	framed, err := json.Marshal(wireEvent{Kind: event.Kind(), Payload: inner})
	if err != nil {
		return err
	}

	env, err := b.adapter.TopicPublish(ctx, contextID, string(framed))
	if err != nil {
		return err
	}
	if !env.Success {
		return env.Err
	}
	return nil
}

// RegisterContext idempotently starts a background poller for contextId.
func (b *Bus) RegisterContext(contextID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensurePollerLocked(contextID)
}

// ensurePollerLocked returns the running poller for contextID, starting one
// if none exists yet. Callers must hold b.mu.
func (b *Bus) ensurePollerLocked(contextID string) *contextPoller {
	if poller, ok := b.contexts[contextID]; ok {
		return poller
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	poller := &contextPoller{cancel: cancel}
	b.contexts[contextID] = poller

	go b.poll(pollCtx, contextID, poller)
	return poller
}

// OnContext registers contextId (if not already registered) and appends
// listener to receive its events, taking a reference on the poller that a
// matching UnregisterContext call must release. A context's topic may have
// several concurrent listeners — e.g. an in-flight sendMessage and a
// resubscribe on the same contextId (§4.3, §4.7) — and one listener's
// teardown must not sever the others.
func (b *Bus) OnContext(contextID string, listener Listener) {
	b.mu.Lock()
	poller := b.ensurePollerLocked(contextID)
	poller.refs++
	b.mu.Unlock()

	poller.mu.Lock()
	poller.listeners = append(poller.listeners, listener)
	poller.mu.Unlock()
}

// UnregisterContext releases one reference on contextId's poller. The poller
// is only canceled and its listeners dropped once every OnContext caller has
// released its reference.
func (b *Bus) UnregisterContext(contextID string) {
	b.mu.Lock()
	poller, ok := b.contexts[contextID]
	if !ok {
		b.mu.Unlock()
		return
	}

	poller.refs--
	if poller.refs > 0 {
		b.mu.Unlock()
		return
	}

	delete(b.contexts, contextID)
	b.mu.Unlock()

	poller.cancel()
}

// Close cancels every poller and clears all listeners.
func (b *Bus) Close() {
	b.mu.Lock()
	pollers := b.contexts
	b.contexts = make(map[string]*contextPoller)
	b.mu.Unlock()

	for _, poller := range pollers {
		poller.cancel()
	}
}

func (b *Bus) dispatch(contextID string, event a2a.Event) {
	b.mu.Lock()
	poller, ok := b.contexts[contextID]
	b.mu.Unlock()
	if !ok {
		return
	}

	poller.mu.Lock()
	listeners := append([]Listener(nil), poller.listeners...)
	poller.mu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// poll runs the per-context subscribe loop described in §4.3: advance seqNum
// past every delivered item, emit a synthetic DiscontinuityNotice when the
// topic reports a gap, and idle briefly between empty polls.
func (b *Bus) poll(ctx context.Context, contextID string, poller *contextPoller) {
	seqNum, seqPage := 0, 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := b.adapter.TopicSubscribe(ctx, contextID, seqNum, seqPage)
		if err != nil {
			log.Error("event bus: poll failed", "contextId", contextID, "err", err)
			sleep(ctx, errorPollDelay)
			continue
		}
		if !env.Success {
			log.Error("event bus: poll failed", "contextId", contextID, "err", env.Err)
			sleep(ctx, errorPollDelay)
			continue
		}

		items := env.Data.Items
		if len(items) == 0 {
			sleep(ctx, idlePollDelay)
			continue
		}

		for _, item := range items {
			if item.IsDiscontinuity() {
				fromSequence := seqNum
				toSequence := *item.NewTopicSequence
				b.dispatch(contextID, a2a.DiscontinuityNotice{
					ContextID:    contextID,
					FromSequence: fromSequence,
					ToSequence:   toSequence,
				})
				seqNum = toSequence + 1
				if item.NewSequencePage != nil {
					seqPage = *item.NewSequencePage
				}
				continue
			}

			event, err := decodeEvent(item.Payload)
			if err != nil {
				log.Error("event bus: decode failed", "contextId", contextID, "err", err)
				continue
			}
			b.dispatch(contextID, event)

			if item.TopicSequenceNumber != nil {
				seqNum = *item.TopicSequenceNumber + 1
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func contextIDOf(event a2a.Event) string {
	switch e := event.(type) {
	case a2a.Message:
		return e.ContextID
	case *a2a.Message:
		return e.ContextID
	case a2a.Task:
		return e.ContextID
	case *a2a.Task:
		return e.ContextID
	case a2a.StatusUpdate:
		return e.ContextID
	case a2a.ArtifactUpdate:
		return e.ContextID
	default:
		return ""
	}
}

// decodeEvent recovers the concrete Event type from a frame produced by
// Publish's wireEvent wrapping.
func decodeEvent(raw string) (a2a.Event, error) {
	var frame wireEvent
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		return nil, err
	}

	switch frame.Kind {
	case a2a.EventKindMessage:
		var msg a2a.Message
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case a2a.EventKindTask:
		var task a2a.Task
		if err := json.Unmarshal(frame.Payload, &task); err != nil {
			return nil, err
		}
		return task, nil
	case a2a.EventKindStatusUpdate:
		var update a2a.StatusUpdate
		if err := json.Unmarshal(frame.Payload, &update); err != nil {
			return nil, err
		}
		return update, nil
	case a2a.EventKindArtifactUpdate:
		var update a2a.ArtifactUpdate
		if err := json.Unmarshal(frame.Payload, &update); err != nil {
			return nil, err
		}
		return update, nil
	default:
		return nil, fmt.Errorf("event bus: unknown event kind %q", frame.Kind)
	}
}

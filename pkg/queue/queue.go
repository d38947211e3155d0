// Package queue implements the per-request Execution Event Queue: a FIFO
// buffer bound to one (bus, contextId) pair that the Executor publishes into
// and a single consumer drains until the stream's terminal event (§4.4).
package queue

import (
	"sync"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/bus"
)

const bufferSize = 32

// Queue buffers events for one context and exposes them as a channel that
// closes once a terminal event is delivered or Stop is called.
type Queue struct {
	b         *bus.Bus
	contextID string

	events chan a2a.Event

	mu      sync.Mutex
	stopped bool
}

// New registers a listener on b for contextID. Events is ready to range over
// immediately; the underlying goroutine stops delivering once a terminal
// event is forwarded or Stop is called.
func New(b *bus.Bus, contextID string) *Queue {
	q := &Queue{
		b:         b,
		contextID: contextID,
		events:    make(chan a2a.Event, bufferSize),
	}

	b.OnContext(contextID, q.deliver)
	return q
}

func (q *Queue) deliver(event a2a.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}

	select {
	case q.events <- event:
	default:
		// Consumer isn't keeping up; drop rather than block the bus
		// poller goroutine indefinitely.
	}

	if isTerminal(event) {
		q.closeLocked()
	}
}

// Events returns the channel to range over. It closes after a Message, a
// final StatusUpdate, or Stop (§4.4).
func (q *Queue) Events() <-chan a2a.Event {
	return q.events
}

// Stop forces termination: idempotent, safe to call concurrently or from
// another goroutine (timeout, upstream error) per §4.4.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

// closeLocked closes the channel and unregisters the bus listener. Must be
// called with q.mu held.
func (q *Queue) closeLocked() {
	if q.stopped {
		return
	}
	q.stopped = true
	close(q.events)
	q.b.UnregisterContext(q.contextID)
}

func isTerminal(event a2a.Event) bool {
	switch e := event.(type) {
	case a2a.Message, *a2a.Message:
		return true
	case a2a.StatusUpdate:
		return e.Final
	default:
		return false
	}
}

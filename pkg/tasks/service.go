// Package tasks composes the Event Bus, Execution Event Queue, Result
// Manager and Task Store into the seven public operations of the A2A
// request surface, one file per operation in the style of the teacher's own
// pkg/tasks package (§4.7).
package tasks

import (
	"time"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/bus"
	"github.com/driftwood-labs/a2a-core/pkg/executor"
	"github.com/driftwood-labs/a2a-core/pkg/stores"
)

// sendMessageDeadline bounds how long sendMessage waits for a terminal event
// before stopping the queue and failing with InternalError("Timeout") (§4.7).
const sendMessageDeadline = 30 * time.Second

// Service wires together the collaborators every operation needs. One
// Service is constructed per agent process; every operation is safe to call
// concurrently (§5: no global mutable singletons).
type Service struct {
	Bus       *bus.Bus
	TaskStore *stores.TaskStore
	PushStore *stores.PushConfigStore
	Executor  *executor.Executor
	Card      *a2a.AgentCard
}

func New(b *bus.Bus, taskStore *stores.TaskStore, pushStore *stores.PushConfigStore, exec *executor.Executor, card *a2a.AgentCard) *Service {
	return &Service{Bus: b, TaskStore: taskStore, PushStore: pushStore, Executor: exec, Card: card}
}

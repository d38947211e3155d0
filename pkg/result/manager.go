// Package result implements the Result Manager: it reduces an Executor's
// event stream into the current Task snapshot, persisting every change to
// the Task Store (§4.5).
package result

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/stores"
)

// Manager accumulates one request's event stream into a Task snapshot.
// It is not safe for concurrent use by multiple goroutines — one Manager is
// created per sendMessage/sendMessageStream invocation (§4.5, §4.6).
type Manager struct {
	store *stores.TaskStore

	currentTask        *a2a.Task
	latestUserMessage  *a2a.Message
	finalMessageResult *a2a.Message
}

// New builds a Manager over store, seeded with the originating user message
// so a Task reduction can prepend it into history if the executor never
// surfaces it itself.
func New(store *stores.TaskStore, latestUserMessage *a2a.Message) *Manager {
	return &Manager{store: store, latestUserMessage: latestUserMessage}
}

// Reduce applies one event per §4.5's rules, persisting on Task/StatusUpdate/
// ArtifactUpdate. It ignores DiscontinuityNotice — that is a bus-local signal,
// never part of the reduced task.
func (m *Manager) Reduce(ctx context.Context, event a2a.Event) {
	switch e := event.(type) {
	case a2a.Message:
		m.reduceMessage(e)
	case *a2a.Message:
		m.reduceMessage(*e)
	case a2a.Task:
		m.reduceTask(ctx, e)
	case *a2a.Task:
		m.reduceTask(ctx, *e)
	case a2a.StatusUpdate:
		m.reduceStatusUpdate(ctx, e)
	case a2a.ArtifactUpdate:
		m.reduceArtifactUpdate(ctx, e)
	case a2a.DiscontinuityNotice:
		// bus-local signal; not part of the reduced task (§4.3).
	default:
		log.Warn("result manager: unknown event kind", "kind", event.Kind())
	}
}

// CurrentTask returns the Task snapshot accumulated so far, or nil if the
// stream only ever produced a Message.
func (m *Manager) CurrentTask() *a2a.Task { return m.currentTask }

// FinalMessageResult returns the Message that ended the stream, if any.
func (m *Manager) FinalMessageResult() *a2a.Message { return m.finalMessageResult }

func (m *Manager) reduceMessage(msg a2a.Message) {
	m.finalMessageResult = &msg
}

func (m *Manager) reduceTask(ctx context.Context, task a2a.Task) {
	m.currentTask = &task

	if m.latestUserMessage != nil && !historyHas(task.History, m.latestUserMessage.MessageID) {
		m.currentTask.PrependHistory(*m.latestUserMessage)
	}

	m.store.Save(ctx, m.currentTask, 0)
}

func (m *Manager) reduceStatusUpdate(ctx context.Context, update a2a.StatusUpdate) {
	if m.currentTask == nil {
		task, ok := m.store.Load(ctx, update.TaskID)
		if !ok {
			log.Warn("result manager: status update for unknown task dropped", "taskId", update.TaskID)
			return
		}
		m.currentTask = task
	}

	m.currentTask.Status = update.Status
	if update.Status.Message != nil {
		m.currentTask.AppendHistory(*update.Status.Message)
	}

	m.store.Save(ctx, m.currentTask, 0)
}

func (m *Manager) reduceArtifactUpdate(ctx context.Context, update a2a.ArtifactUpdate) {
	if m.currentTask == nil {
		task, ok := m.store.Load(ctx, update.TaskID)
		if !ok {
			log.Warn("result manager: artifact update for unknown task dropped", "taskId", update.TaskID)
			return
		}
		m.currentTask = task
	}

	if existing := m.currentTask.FindArtifact(update.Artifact.ArtifactID); existing != nil {
		existing.Merge(update.Artifact, update.Append)
	} else {
		m.currentTask.Artifacts = append(m.currentTask.Artifacts, update.Artifact)
	}

	m.store.Save(ctx, m.currentTask, 0)
}

func historyHas(history []a2a.Message, messageID string) bool {
	for _, msg := range history {
		if msg.MessageID == messageID {
			return true
		}
	}
	return false
}

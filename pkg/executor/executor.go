// Package executor runs a user-supplied handler against an incoming Message,
// publishing its progress and outcome onto the Event Bus as Task,
// StatusUpdate and (optionally) ArtifactUpdate events (§4.6).
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/bus"
)

// AgentType is metadata carried on every task the Executor initializes; it
// never changes control flow (§4.6).
type AgentType string

const (
	AgentTypeWorker     AgentType = "worker"
	AgentTypeSupervisor AgentType = "supervisor"
)

// Identity names the agent instance driving execution, stamped into task
// metadata and every StatusUpdate.
type Identity struct {
	AgentName string
	AgentID   string
	AgentType AgentType
}

// PublishUpdate emits a progress message on the handler's behalf. Each call
// publishes exactly one working StatusUpdate (§4.6 step 3).
type PublishUpdate func(ctx context.Context, text string)

// Handler is the user-supplied task logic. task is the in-progress Task at
// invocation time; publish lets the handler surface incremental progress.
type Handler func(ctx context.Context, message a2a.Message, task *a2a.Task, publish PublishUpdate) (Result, error)

// ResultKind discriminates Result's three shapes (§4.6).
type ResultKind int

const (
	ResultText ResultKind = iota
	ResultParts
	ResultTaskPartial
)

// Result is the tagged return value of a Handler.
type Result struct {
	Kind ResultKind

	// ResultText
	Text string

	// ResultParts
	Parts     []a2a.Part
	Artifacts []a2a.Artifact
	Metadata  map[string]any

	// ResultTaskPartial: Status.State and Status.Message are required.
	TaskPartial *a2a.Task
}

// TextResult builds a ResultText.
func TextResult(text string) Result { return Result{Kind: ResultText, Text: text} }

// PartsResult builds a ResultParts.
func PartsResult(parts []a2a.Part, artifacts []a2a.Artifact, metadata map[string]any) Result {
	return Result{Kind: ResultParts, Parts: parts, Artifacts: artifacts, Metadata: metadata}
}

// TaskPartialResult builds a ResultTaskPartial. partial.Status.State and
// partial.Status.Message must be set.
func TaskPartialResult(partial *a2a.Task) Result {
	return Result{Kind: ResultTaskPartial, TaskPartial: partial}
}

// Executor runs Handlers and publishes their lifecycle onto a Bus.
type Executor struct {
	bus      *bus.Bus
	identity Identity
}

// New builds an Executor that publishes through b, stamping every task and
// status update with identity.
func New(b *bus.Bus, identity Identity) *Executor {
	return &Executor{bus: b, identity: identity}
}

// Execute runs handler against message and an optional pre-existing task,
// publishing the full lifecycle described in §4.6. It never returns an error
// from handler failures — those terminate the task via a failed StatusUpdate
// instead (§4.6 step 5).
func (ex *Executor) Execute(ctx context.Context, message a2a.Message, existing *a2a.Task, handler Handler) {
	task, isNew := ex.initTask(message, existing)

	if isNew {
		ex.publish(ctx, *task)
	}

	ex.publishStatus(ctx, task, a2a.TaskStateWorking, &message, false)

	publish := func(ctx context.Context, text string) {
		progress := message.WithParts([]a2a.Part{a2a.NewTextPart(text)})
		ex.publishStatus(ctx, task, a2a.TaskStateWorking, &progress, false)
	}

	result, err := handler(ctx, message, task, publish)
	if err != nil {
		ex.fail(ctx, task, message, err)
		return
	}

	ex.succeed(ctx, task, message, result)
}

func (ex *Executor) initTask(message a2a.Message, existing *a2a.Task) (*a2a.Task, bool) {
	if existing != nil {
		return existing, false
	}

	taskID := message.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	contextID := message.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}

	metadata := map[string]any{
		"agentName": ex.identity.AgentName,
		"agentId":   ex.identity.AgentID,
		"agentType": string(ex.identity.AgentType),
	}

	return &a2a.Task{
		ID:        taskID,
		ContextID: contextID,
		Status: a2a.TaskStatus{
			State:     a2a.TaskStateSubmitted,
			Message:   &message,
			Timestamp: time.Now(),
		},
		History:  []a2a.Message{message},
		Metadata: metadata,
	}, true
}

func (ex *Executor) succeed(ctx context.Context, task *a2a.Task, message a2a.Message, result Result) {
	var final a2a.Message

	switch result.Kind {
	case ResultText:
		final = message.WithParts([]a2a.Part{a2a.NewTextPart(result.Text)})
		task.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted, Message: &final, Timestamp: time.Now()}

	case ResultParts:
		final = message.WithParts(result.Parts)
		task.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted, Message: &final, Timestamp: time.Now()}
		task.Artifacts = append(task.Artifacts, result.Artifacts...)
		mergeMetadata(task, result.Metadata)
		for _, artifact := range result.Artifacts {
			_ = ex.bus.Publish(ctx, a2a.ArtifactUpdate{TaskID: task.ID, ContextID: task.ContextID, Artifact: artifact})
		}

	case ResultTaskPartial:
		mergeTaskPartial(task, result.TaskPartial)
		if task.Status.Message != nil {
			final = *task.Status.Message
		}
	}

	task.AppendHistory(message)
	ex.publishStatus(ctx, task, task.Status.State, task.Status.Message, true)
}

func (ex *Executor) fail(ctx context.Context, task *a2a.Task, message a2a.Message, handlerErr error) {
	failure := message.WithParts([]a2a.Part{
		a2a.NewTextPart(fmt.Sprintf("Agent execution failed: %s", handlerErr.Error())),
	})
	task.Status = a2a.TaskStatus{State: a2a.TaskStateFailed, Message: &failure, Timestamp: time.Now()}
	task.AppendHistory(failure)

	ex.publishStatus(ctx, task, a2a.TaskStateFailed, &failure, true)
}

func (ex *Executor) publish(ctx context.Context, task a2a.Task) {
	_ = ex.bus.Publish(ctx, task)
}

func (ex *Executor) publishStatus(ctx context.Context, task *a2a.Task, state a2a.TaskState, message *a2a.Message, final bool) {
	_ = ex.bus.Publish(ctx, a2a.StatusUpdate{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status: a2a.TaskStatus{
			State:     state,
			Message:   message,
			Timestamp: time.Now(),
		},
		Final: final,
		Metadata: map[string]any{
			"agentName": ex.identity.AgentName,
			"agentId":   ex.identity.AgentID,
			"agentType": string(ex.identity.AgentType),
		},
	})
}

func mergeMetadata(task *a2a.Task, update map[string]any) {
	if len(update) == 0 {
		return
	}
	if task.Metadata == nil {
		task.Metadata = make(map[string]any, len(update))
	}
	for k, v := range update {
		task.Metadata[k] = v
	}
}

func mergeTaskPartial(task *a2a.Task, partial *a2a.Task) {
	if partial == nil {
		return
	}
	task.Status = partial.Status
	if len(partial.Artifacts) > 0 {
		task.Artifacts = partial.Artifacts
	}
	mergeMetadata(task, partial.Metadata)
}

package tasks

import (
	"context"

	"github.com/google/uuid"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
	"github.com/driftwood-labs/a2a-core/pkg/executor"
	"github.com/driftwood-labs/a2a-core/pkg/queue"
	"github.com/driftwood-labs/a2a-core/pkg/result"
)

// SendResult is the sendMessage/sendMessageStream outcome: exactly one of
// Task or Message is set, mirroring the "a Message ends the stream, a Task
// is the running/terminal snapshot" duality from §4.5.
type SendResult struct {
	Task    *a2a.Task
	Message *a2a.Message
}

// SendMessage validates params, drives the Executor and Result Manager to a
// terminal event, and returns the resulting Task or Message (§4.7).
func (s *Service) SendMessage(ctx context.Context, params a2a.MessageSendParams, handler executor.Handler) (SendResult, *errors.RpcError) {
	message, task, contextID, rpcErr := s.prepareSend(ctx, params)
	if rpcErr != nil {
		return SendResult{}, rpcErr
	}

	q := queue.New(s.Bus, contextID)
	rm := result.New(s.TaskStore, &message)

	deadline, cancel := context.WithTimeout(ctx, sendMessageDeadline)
	defer cancel()

	// The handler observes the same deadline cooperatively (§9 decision 1):
	// Go cannot preempt it, but once the queue stops below, its further
	// publishUpdate calls become no-ops for this caller.
	go s.Executor.Execute(deadline, message, task, handler)

	for {
		select {
		case event, ok := <-q.Events():
			if !ok {
				return resultFromManager(rm), nil
			}
			rm.Reduce(ctx, event)

		case <-deadline.Done():
			q.Stop()
			return SendResult{}, errors.ErrInternal.WithMessagef("Timeout")
		}
	}
}

func (s *Service) prepareSend(ctx context.Context, params a2a.MessageSendParams) (a2a.Message, *a2a.Task, string, *errors.RpcError) {
	message := params.Message
	if message.MessageID == "" {
		return a2a.Message{}, nil, "", errors.ErrInvalidParams.WithMessagef("messageId is required")
	}

	var task *a2a.Task
	if message.TaskID != "" {
		loaded, ok := s.TaskStore.Load(ctx, message.TaskID)
		if !ok {
			return a2a.Message{}, nil, "", errors.ErrTaskNotFound
		}
		task = loaded
	}

	contextID := message.ContextID
	if contextID == "" && task != nil {
		contextID = task.ContextID
	}
	if contextID == "" {
		contextID = uuid.NewString()
	}
	message.ContextID = contextID

	s.Bus.RegisterContext(contextID)
	return message, task, contextID, nil
}

func resultFromManager(rm *result.Manager) SendResult {
	if msg := rm.FinalMessageResult(); msg != nil {
		return SendResult{Message: msg}
	}
	return SendResult{Task: rm.CurrentTask()}
}

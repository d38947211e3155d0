package a2a

import (
	"strings"

	"github.com/google/uuid"
)

// Role distinguishes the originator of a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

/*
Message represents all non-artifact communication between client and agent.
It is immutable once emitted onto the event bus.
*/
type Message struct {
	MessageID string         `json:"messageId"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Kind satisfies the Event interface (§3: Events = Message | Task | ...).
func (m Message) Kind() EventKind { return EventKindMessage }

// NewTextMessage builds a Message with a single text part and a fresh ID.
func NewTextMessage(role Role, text string) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Parts:     []Part{NewTextPart(text)},
	}
}

// String renders the concatenation of the message's text parts.
func (m *Message) String() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// WithParts returns a shallow copy of m with Parts replaced. Used by the
// Executor to derive a reply message from the original request message
// while preserving its role/context/task linkage.
func (m Message) WithParts(parts []Part) Message {
	m.Parts = parts
	return m
}

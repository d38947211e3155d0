package a2a

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

/*
Task is the authoritative record of one A2A task (§3). The Executor is the
only writer while a task is submitted/working; once a terminal StatusUpdate
or Message closes the stream, the Result Manager is the sole writer (§3
Ownership).
*/
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (Task) Kind() EventKind { return EventKindTask }

// AppendHistory appends msg if no history entry shares its MessageID (§3:
// history is append-only and deduplicated by messageId).
func (t *Task) AppendHistory(msg Message) {
	for _, existing := range t.History {
		if existing.MessageID == msg.MessageID {
			return
		}
	}
	t.History = append(t.History, msg)
}

// PrependHistory inserts msg at the front unless its MessageID already
// appears. Used when the originating user message must appear first but a
// Task event already carries other history (§3, §4.5 Task reduction rule).
func (t *Task) PrependHistory(msg Message) {
	for _, existing := range t.History {
		if existing.MessageID == msg.MessageID {
			return
		}
	}
	t.History = append([]Message{msg}, t.History...)
}

// FindArtifact returns the artifact with the given ID, if any.
func (t *Task) FindArtifact(artifactID string) *Artifact {
	for i := range t.Artifacts {
		if t.Artifacts[i].ArtifactID == artifactID {
			return &t.Artifacts[i]
		}
	}
	return nil
}

// TrimHistory returns the last n history entries, or the full history when n
// is negative or exceeds its length (§4.7 getTask historyLength).
func (t *Task) TrimHistory(n int) []Message {
	if n < 0 || n >= len(t.History) {
		return t.History
	}
	return t.History[len(t.History)-n:]
}

// String renders a human-readable summary in the house box-drawing style.
func (t *Task) String() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)

	bullet := "│ "

	sb.WriteString(headerStyle.Render("Task") + "\n")
	sb.WriteString(bullet + labelStyle.Render("ID: ") + valueStyle.Render(t.ID) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Context: ") + valueStyle.Render(t.ContextID) + "\n")

	sb.WriteString("\n" + sectionStyle.Render("Status") + "\n")
	sb.WriteString(bullet + labelStyle.Render("State: ") + valueStyle.Render(string(t.Status.State)) + "\n")
	if t.Status.Message != nil {
		sb.WriteString(bullet + labelStyle.Render("Message: ") + valueStyle.Render(t.Status.Message.String()) + "\n")
	}
	if !t.Status.Timestamp.IsZero() {
		sb.WriteString(bullet + labelStyle.Render("Timestamp: ") + valueStyle.Render(t.Status.Timestamp.Format(time.RFC3339)) + "\n")
	}

	if len(t.Artifacts) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Artifacts") + "\n")
		for i, artifact := range t.Artifacts {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Artifact %d: ", i+1)) + valueStyle.Render(artifact.ArtifactID) + "\n")
		}
	}

	if len(t.Metadata) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Metadata") + "\n")
		keys := make([]string, 0, len(t.Metadata))
		for k := range t.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(bullet + labelStyle.Render(k+": ") + valueStyle.Render(fmt.Sprintf("%v", t.Metadata[k])) + "\n")
		}
	}

	return sb.String()
}

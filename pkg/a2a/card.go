package a2a

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
)

// AgentAuthentication describes how a client must authenticate to an agent.
type AgentAuthentication struct {
	Schemes     []string `json:"schemes"`
	Credentials *string  `json:"credentials,omitempty"`
}

// AgentCapabilities are authoritative per §3: Streaming=false forbids SSE
// responses, PushNotifications=false forbids push-config operations.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming,omitempty"`
	PushNotifications      bool `json:"pushNotifications,omitempty"`
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty"`
}

type AgentProvider struct {
	Organization string  `json:"organization"`
	URL          *string `json:"url,omitempty"`
}

type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// AgentCard is the self-describing document served at
// .well-known/agent.json (§6).
type AgentCard struct {
	Name               string               `json:"name"`
	Description        *string              `json:"description,omitempty"`
	URL                string               `json:"url"`
	Provider           *AgentProvider       `json:"provider,omitempty"`
	Version            string               `json:"version"`
	DocumentationURL   *string              `json:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities    `json:"capabilities"`
	Authentication     *AgentAuthentication `json:"authentication,omitempty"`
	DefaultInputModes  []string             `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string             `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill         `json:"skills"`
}

// RequireStreaming fails with StreamingNotSupported when streaming is
// disabled (§3 capability invariant, §7).
func (c *AgentCard) RequireStreaming() *errors.RpcError {
	if !c.Capabilities.Streaming {
		return errors.ErrStreamingNotSupported
	}
	return nil
}

// RequirePushNotifications enforces the same invariant for push-config ops.
func (c *AgentCard) RequirePushNotifications() *errors.RpcError {
	if !c.Capabilities.PushNotifications {
		return errors.ErrPushNotificationNotSupported
	}
	return nil
}

func (c *AgentCard) String() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	bullet := "│ "

	sb.WriteString(headerStyle.Render("Agent Card") + "\n")
	sb.WriteString(bullet + labelStyle.Render("Name: ") + valueStyle.Render(c.Name) + "\n")
	sb.WriteString(bullet + labelStyle.Render("URL: ") + valueStyle.Render(c.URL) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Version: ") + valueStyle.Render(c.Version) + "\n")

	sb.WriteString("\n" + sectionStyle.Render("Capabilities") + "\n")
	sb.WriteString(bullet + labelStyle.Render("Streaming: ") + valueStyle.Render(fmt.Sprintf("%v", c.Capabilities.Streaming)) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Push Notifications: ") + valueStyle.Render(fmt.Sprintf("%v", c.Capabilities.PushNotifications)) + "\n")

	if len(c.Skills) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Skills") + "\n")
		for _, skill := range c.Skills {
			sb.WriteString(bullet + labelStyle.Render(skill.ID+": ") + valueStyle.Render(skill.Name) + "\n")
		}
	}

	return sb.String()
}

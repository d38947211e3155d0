package a2a

// PushNotificationConfig is a caller-provided webhook descriptor, stored but
// not dispatched by this core (§1 Non-goals, GLOSSARY).
type PushNotificationConfig struct {
	URL            string               `json:"url"`
	Token          *string              `json:"token,omitempty"`
	Authentication *AgentAuthentication `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig pairs a task with its push configuration, the
// shape persisted under push-config:{taskId} (§6).
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

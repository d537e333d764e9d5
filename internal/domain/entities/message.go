package entities

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// LogLabel returns the role label used in the record store's message log.
func (r Role) LogLabel() string {
	if r == RoleAssistant {
		return "Bot"
	}
	return "User"
}

// ConversationMessage is a single entry in a per-video conversation history.
type ConversationMessage struct {
	Role      Role
	Content   string
	Timestamp time.Time
	// ExternalID is the record id of the logged copy in the record store,
	// when logging succeeded.
	ExternalID string
}

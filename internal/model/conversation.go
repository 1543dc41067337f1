package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one chat transcript entry. LinkedVersion is 1-based, matching
// the "Version N" wording shown to the user.
type ConversationTurn struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Text          string    `json:"content"`
	LinkedVersion *int      `json:"version,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type Project struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Name      string             `json:"name"`
	Code      string             `json:"code"`
	Messages  []ConversationTurn `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

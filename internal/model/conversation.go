package model

import "time"

// Conversation is the broadcast scope for one chat: a direct pair or a group.
// A direct conversation has exactly two distinct members and at most one
// conversation exists per unordered pair (enforced by FindDirect-then-Create
// in the handlers).
type Conversation struct {
	ID            string    `json:"id"`
	IsGroup       bool      `json:"is_group"`
	Name          string    `json:"name,omitempty"`
	AdminID       string    `json:"admin_id,omitempty"` // groups only
	AvatarURL     string    `json:"avatar_url,omitempty"`
	LastMessageID *string   `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Expanded fields, filled by the store on list/get.
	Members     []UserPublic `json:"members,omitempty"`
	LastMessage *Message     `json:"last_message,omitempty"`
}

type ConversationMember struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

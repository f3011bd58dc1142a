package model

import "time"

// Message is the unit of conversation history. CreatedAt is the authoritative
// ordering key: it is non-decreasing in the order messages are durably
// appended to a conversation, which is not necessarily delivery order.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Text           string     `json:"text"` // empty for file-only messages
	FileURL        string     `json:"file_url,omitempty"`
	FileType       string     `json:"file_type,omitempty"`
	ReplyToID      *string    `json:"reply_to_id,omitempty"`
	Reactions      []Reaction `json:"reactions,omitempty"`
	ReadBy         []string   `json:"read_by,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at"`

	Sender  *UserPublic `json:"sender,omitempty"`
	ReplyTo *Message    `json:"reply_to,omitempty"`
}

// Clone returns a deep copy safe to hand to another goroutine or to mutate
// in a store read-modify-write cycle.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Reactions != nil {
		cp.Reactions = make([]Reaction, len(m.Reactions))
		copy(cp.Reactions, m.Reactions)
		for i := range m.Reactions {
			if m.Reactions[i].Users != nil {
				cp.Reactions[i].Users = append([]string(nil), m.Reactions[i].Users...)
			}
		}
	}
	if m.ReadBy != nil {
		cp.ReadBy = append([]string(nil), m.ReadBy...)
	}
	return &cp
}

package ws

type EventType string

const (
	// client -> server
	EventUserOnline  EventType = "user_online"
	EventJoinChat    EventType = "join_chat"
	EventSendMessage EventType = "send_message"
	EventTyping      EventType = "typing"
	EventStopTyping  EventType = "stop_typing"

	// server -> client
	EventOnlineUsers    EventType = "online_users"
	EventReceiveMessage EventType = "receive_message"
	EventUserTyping     EventType = "user_typing"
	EventUserStopTyping EventType = "user_stop_typing"
	EventError          EventType = "error"
)

// IncomingEvent is what the client sends to the server. One flat envelope
// for all event types; unused fields stay empty.
type IncomingEvent struct {
	Type           EventType `json:"type"`
	UserID         string    `json:"user_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Text           string    `json:"text,omitempty"`
	FileURL        string    `json:"file_url,omitempty"`
	FileType       string    `json:"file_type,omitempty"`
	ReplyToID      string    `json:"reply_to_id,omitempty"`
	DisplayName    string    `json:"display_name,omitempty"`
}

// OutgoingEvent is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// TypingPayload is relayed for user_typing events.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name,omitempty"`
}

// StopTypingPayload is relayed for user_stop_typing events.
type StopTypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// ErrorPayload is sent only to the connection whose request failed.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Package store defines the durable-store boundary the sync engine consumes.
// The engine never touches SQL directly: it talks to these interfaces, backed
// by Postgres in production and by the in-memory store in tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Rajatk8400/gochat/internal/model"
)

var ErrNotFound = errors.New("not found")

// MessageStore persists conversation messages.
type MessageStore interface {
	// Create durably appends a message. The caller assigns ID and CreatedAt;
	// CreatedAt must be non-decreasing in append order per conversation.
	Create(ctx context.Context, m *model.Message) error
	ByID(ctx context.Context, id string) (*model.Message, error)
	// Update runs a read-modify-write cycle on a single message, serialized
	// by the store so concurrent mutators (reactions, read receipts, soft
	// delete) never lose increments. The mutated message is returned with
	// sender expanded.
	Update(ctx context.Context, id string, mutate func(*model.Message) error) (*model.Message, error)
	// ListByConversation returns messages in ascending CreatedAt order.
	// limit must be positive and offset non-negative; callers clamp.
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
}

// ConversationStore persists conversations and their membership.
type ConversationStore interface {
	Create(ctx context.Context, c *model.Conversation, memberIDs []string) error
	ByID(ctx context.Context, id string) (*model.Conversation, error)
	// UpdateSummary moves the conversation's last-message pointer and
	// recency timestamp after a successful append.
	UpdateSummary(ctx context.Context, id, lastMessageID string, at time.Time) error
	// ListByUser returns the user's conversations, most recent first, with
	// members and last message expanded.
	ListByUser(ctx context.Context, userID string) ([]model.Conversation, error)
	// FindDirect locates the one direct conversation for an unordered user
	// pair, or ErrNotFound.
	FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	MemberIDs(ctx context.Context, conversationID string) ([]string, error)
}

// UserStore exposes identity reference data.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	Search(ctx context.Context, query string, limit int) ([]model.UserPublic, error)
	SetOnline(ctx context.Context, id string, online bool) error
}

// PushSubscription is one browser Web Push endpoint for a user.
type PushSubscription struct {
	UserID   string `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// SubscriptionStore persists Web Push subscriptions.
type SubscriptionStore interface {
	Save(ctx context.Context, s *PushSubscription) error
	Delete(ctx context.Context, userID, endpoint string) error
	ListByUser(ctx context.Context, userID string) ([]PushSubscription, error)
}

// Stores bundles the collaborator interfaces for constructor injection.
type Stores struct {
	Messages      MessageStore
	Conversations ConversationStore
	Users         UserStore
	Subscriptions SubscriptionStore
}

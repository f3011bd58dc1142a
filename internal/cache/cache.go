// Package cache holds the per-user conversation-list cache.
// Implementations: redis.Client, memory.Client (for -dev without Redis).
package cache

import (
	"context"

	"github.com/Rajatk8400/gochat/internal/model"
)

// ConversationCache caches the expensive "list my conversations" query.
// Entries are invalidated whenever a member's conversation list changes
// (new message, new conversation).
type ConversationCache interface {
	// GetConversations returns the cached list and whether it was present.
	GetConversations(ctx context.Context, userID string) ([]model.Conversation, bool, error)
	SetConversations(ctx context.Context, userID string, convs []model.Conversation) error
	Invalidate(ctx context.Context, userID string) error
	Close() error
}

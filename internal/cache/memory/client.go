// Package memory is the in-process ConversationCache used by -dev mode
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Rajatk8400/gochat/internal/model"
)

type entry struct {
	convs   []model.Conversation
	expires time.Time
}

type Client struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
}

func New(ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Client{ttl: ttl, entries: make(map[string]entry)}
}

func (c *Client) GetConversations(ctx context.Context, userID string) ([]model.Conversation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, userID)
		return nil, false, nil
	}
	return append([]model.Conversation(nil), e.convs...), true, nil
}

func (c *Client) SetConversations(ctx context.Context, userID string, convs []model.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = entry{
		convs:   append([]model.Conversation(nil), convs...),
		expires: time.Now().Add(c.ttl),
	}
	return nil
}

func (c *Client) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

func (c *Client) Close() error { return nil }

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rajatk8400/gochat/internal/model"
)

const defaultTTL = 60 * time.Second

type Client struct {
	cli *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, url string, ttl time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Client{cli: cli, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func key(userID string) string { return "conversations:" + userID }

func (c *Client) GetConversations(ctx context.Context, userID string) ([]model.Conversation, bool, error) {
	raw, err := c.cli.Get(ctx, key(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var convs []model.Conversation
	if err := json.Unmarshal(raw, &convs); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return convs, true, nil
}

func (c *Client) SetConversations(ctx context.Context, userID string, convs []model.Conversation) error {
	raw, err := json.Marshal(convs)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, key(userID), raw, c.ttl).Err()
}

func (c *Client) Invalidate(ctx context.Context, userID string) error {
	return c.cli.Del(ctx, key(userID)).Err()
}

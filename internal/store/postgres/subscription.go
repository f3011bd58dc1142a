package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/store"
)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

func (r *SubscriptionRepo) Save(ctx context.Context, s *store.PushSubscription) error {
	defer logger.DeferLogDuration("sub.Save", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		s.UserID, s.Endpoint, s.P256dh, s.Auth,
	)
	if err != nil {
		return fmt.Errorf("subRepo.Save: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) Delete(ctx context.Context, userID, endpoint string) error {
	defer logger.DeferLogDuration("sub.Delete", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint,
	)
	if err != nil {
		return fmt.Errorf("subRepo.Delete: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]store.PushSubscription, error) {
	defer logger.DeferLogDuration("sub.ListByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("subRepo.ListByUser query: %w", err)
	}
	defer rows.Close()

	subs := make([]store.PushSubscription, 0, 2)
	for rows.Next() {
		var s store.PushSubscription
		if err := rows.Scan(&s.UserID, &s.Endpoint, &s.P256dh, &s.Auth); err != nil {
			return nil, fmt.Errorf("subRepo.ListByUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subRepo.ListByUser rows: %w", err)
	}
	return subs, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/store"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, username, phone, email, password_hash, bio, avatar_url, is_online, last_seen_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Name, u.Username, u.Phone, u.Email, u.PasswordHash, u.Bio, u.AvatarURL, u.IsOnline, u.LastSeenAt, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.ByID", time.Now())()
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, username, phone, COALESCE(email,''), password_hash, bio, avatar_url, is_online, last_seen_at, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Username, &u.Phone, &u.Email, &u.PasswordHash, &u.Bio, &u.AvatarURL, &u.IsOnline, &u.LastSeenAt, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.ByID: %w", err)
	}
	return u, nil
}

// Search finds users by phone, username or name prefix for the contact picker.
func (r *UserRepo) Search(ctx context.Context, query string, limit int) ([]model.UserPublic, error) {
	defer logger.DeferLogDuration("user.Search", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, username, phone, avatar_url, bio, is_online, last_seen_at
		 FROM users
		 WHERE phone ILIKE $1 || '%' OR username ILIKE $1 || '%' OR name ILIKE $1 || '%'
		 ORDER BY name
		 LIMIT $2`, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.Search query: %w", err)
	}
	defer rows.Close()

	users := make([]model.UserPublic, 0, limit)
	for rows.Next() {
		var u model.UserPublic
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Phone, &u.AvatarURL, &u.Bio, &u.IsOnline, &u.LastSeenAt); err != nil {
			return nil, fmt.Errorf("userRepo.Search scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.Search rows: %w", err)
	}
	return users, nil
}

func (r *UserRepo) SetOnline(ctx context.Context, id string, online bool) error {
	defer logger.DeferLogDuration("user.SetOnline", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET is_online = $1, last_seen_at = now() WHERE id = $2`, online, id,
	)
	if err != nil {
		return fmt.Errorf("userRepo.SetOnline: %w", err)
	}
	return nil
}

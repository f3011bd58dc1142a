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

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	c := &model.Conversation{}
	var adminID *string
	err := row.Scan(&c.ID, &c.IsGroup, &c.Name, &adminID, &c.AvatarURL, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if adminID != nil {
		c.AdminID = *adminID
	}
	return c, nil
}

const conversationColumns = `c.id, c.is_group, c.name, c.admin_id, c.avatar_url, c.last_message_id, c.created_at, c.updated_at`

func (r *ConversationRepo) Create(ctx context.Context, c *model.Conversation, memberIDs []string) error {
	defer logger.DeferLogDuration("conv.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("convRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var adminID *string
	if c.AdminID != "" {
		adminID = &c.AdminID
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, is_group, name, admin_id, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.IsGroup, c.Name, adminID, c.AvatarURL, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("convRepo.Create insert: %w", err)
	}
	for _, uid := range memberIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id, joined_at)
			 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			c.ID, uid, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("convRepo.Create member: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("convRepo.Create commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.ByID", time.Now())()
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.ByID: %w", err)
	}
	if err := r.expand(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) UpdateSummary(ctx context.Context, id, lastMessageID string, at time.Time) error {
	defer logger.DeferLogDuration("conv.UpdateSummary", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET last_message_id = $1, updated_at = $2 WHERE id = $3`,
		lastMessageID, at, id,
	)
	if err != nil {
		return fmt.Errorf("convRepo.UpdateSummary: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conv.ListByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+conversationColumns+`
		 FROM conversations c
		 JOIN conversation_members cm ON cm.conversation_id = c.id
		 WHERE cm.user_id = $1
		 ORDER BY c.updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ListByUser query: %w", err)
	}
	defer rows.Close()

	convs := make([]model.Conversation, 0, 16)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("convRepo.ListByUser scan: %w", err)
		}
		convs = append(convs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.ListByUser rows: %w", err)
	}
	for i := range convs {
		if err := r.expand(ctx, &convs[i]); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (r *ConversationRepo) FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.FindDirect", time.Now())()
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+`
		 FROM conversations c
		 WHERE c.is_group = false
		   AND EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = c.id AND user_id = $1)
		   AND EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = c.id AND user_id = $2)`,
		userA, userB,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.FindDirect: %w", err)
	}
	if err := r.expand(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	defer logger.DeferLogDuration("conv.IsMember", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("convRepo.IsMember: %w", err)
	}
	return exists, nil
}

func (r *ConversationRepo) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	defer logger.DeferLogDuration("conv.MemberIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_members WHERE conversation_id = $1 ORDER BY joined_at`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.MemberIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("convRepo.MemberIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.MemberIDs rows: %w", err)
	}
	return ids, nil
}

// expand fills Members and LastMessage on a conversation.
func (r *ConversationRepo) expand(ctx context.Context, c *model.Conversation) error {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, u.username, u.phone, u.avatar_url, u.bio, u.is_online, u.last_seen_at
		 FROM users u
		 JOIN conversation_members cm ON cm.user_id = u.id
		 WHERE cm.conversation_id = $1
		 ORDER BY cm.joined_at`, c.ID,
	)
	if err != nil {
		return fmt.Errorf("convRepo.expand members: %w", err)
	}
	defer rows.Close()

	members := make([]model.UserPublic, 0, 8)
	for rows.Next() {
		var u model.UserPublic
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Phone, &u.AvatarURL, &u.Bio, &u.IsOnline, &u.LastSeenAt); err != nil {
			return fmt.Errorf("convRepo.expand scan: %w", err)
		}
		members = append(members, u)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("convRepo.expand rows: %w", err)
	}
	c.Members = members

	if c.LastMessageID == nil {
		return nil
	}
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, *c.LastMessageID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("convRepo.expand last message: %w", err)
	}
	c.LastMessage = m
	return nil
}

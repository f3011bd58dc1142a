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

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `m.id, m.conversation_id, m.sender_id, m.text, m.file_url, m.file_type,
	        m.reply_to_id, m.reactions, m.read_by, m.is_deleted, m.created_at,
	        u.id, u.name, u.username, u.phone, u.avatar_url, u.bio, u.is_online, u.last_seen_at`

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	sender := &model.UserPublic{}
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.FileURL, &m.FileType,
		&m.ReplyToID, &m.Reactions, &m.ReadBy, &m.IsDeleted, &m.CreatedAt,
		&sender.ID, &sender.Name, &sender.Username, &sender.Phone, &sender.AvatarURL, &sender.Bio, &sender.IsOnline, &sender.LastSeenAt)
	if err != nil {
		return nil, err
	}
	m.Sender = sender
	return m, nil
}

func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	reactions := m.Reactions
	if reactions == nil {
		reactions = []model.Reaction{}
	}
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	// created_at never goes backwards within a conversation: a wall-clock
	// step or an interleaved insert must not break the ordering key.
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, text, file_url, file_type, reply_to_id, reactions, read_by, is_deleted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         GREATEST($11, (SELECT coalesce(max(created_at), '-infinity'::timestamptz) FROM messages WHERE conversation_id = $2)))
		 RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderID, m.Text, m.FileURL, m.FileType, m.ReplyToID, reactions, readBy, m.IsDeleted, m.CreatedAt,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

func (r *MessageRepo) ByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.ByID", time.Now())()
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ByID: %w", err)
	}
	return m, nil
}

// Update locks the row for the duration of the mutation so concurrent
// read-modify-write cycles on the same message serialize instead of losing
// increments.
func (r *MessageRepo) Update(ctx context.Context, id string, mutate func(*model.Message) error) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.Update", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Update begin: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := scanMessage(tx.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1
		 FOR UPDATE OF m`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Update select: %w", err)
	}

	if err := mutate(m); err != nil {
		return nil, err
	}

	reactions := m.Reactions
	if reactions == nil {
		reactions = []model.Reaction{}
	}
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	_, err = tx.Exec(ctx,
		`UPDATE messages
		 SET text = $1, file_url = $2, file_type = $3, reactions = $4, read_by = $5, is_deleted = $6
		 WHERE id = $7`,
		m.Text, m.FileURL, m.FileType, reactions, readBy, m.IsDeleted, id,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Update exec: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("msgRepo.Update commit: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListByConversation", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at, m.id
		 LIMIT $2 OFFSET $3`, conversationID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByConversation query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.ListByConversation scan: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListByConversation rows: %w", err)
	}
	return messages, nil
}

// Package memory is an in-process implementation of the store interfaces.
// It backs tests and keeps the same semantics as the Postgres store: message
// mutations serialize under the store lock and created_at never decreases
// within a conversation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/store"
)

type core struct {
	mu            sync.Mutex
	users         map[string]*model.User
	conversations map[string]*model.Conversation
	members       map[string][]string // conversationID -> userIDs in join order
	messages      map[string]*model.Message
	byConv        map[string][]string // conversationID -> messageIDs in append order
	lastStamp     map[string]time.Time
	subs          map[string][]store.PushSubscription
}

// Store owns the shared state; the typed accessors expose it behind the
// store interfaces.
type Store struct {
	c *core
}

func New() *Store {
	return &Store{c: &core{
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		members:       make(map[string][]string),
		messages:      make(map[string]*model.Message),
		byConv:        make(map[string][]string),
		lastStamp:     make(map[string]time.Time),
		subs:          make(map[string][]store.PushSubscription),
	}}
}

func (s *Store) Messages() store.MessageStore           { return &messageStore{s.c} }
func (s *Store) Conversations() store.ConversationStore { return &conversationStore{s.c} }
func (s *Store) Users() store.UserStore                 { return &userStore{s.c} }
func (s *Store) Subscriptions() store.SubscriptionStore { return &subscriptionStore{s.c} }

// Stores bundles all four interfaces for constructor injection.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Messages:      s.Messages(),
		Conversations: s.Conversations(),
		Users:         s.Users(),
		Subscriptions: s.Subscriptions(),
	}
}

func (c *core) withSender(m *model.Message) *model.Message {
	cp := m.Clone()
	if u, ok := c.users[m.SenderID]; ok {
		pub := u.ToPublic()
		cp.Sender = &pub
	}
	return cp
}

func (c *core) expand(conv *model.Conversation) *model.Conversation {
	cp := *conv
	cp.Members = make([]model.UserPublic, 0, len(c.members[conv.ID]))
	for _, uid := range c.members[conv.ID] {
		if u, ok := c.users[uid]; ok {
			cp.Members = append(cp.Members, u.ToPublic())
		}
	}
	if conv.LastMessageID != nil {
		if m, ok := c.messages[*conv.LastMessageID]; ok {
			cp.LastMessage = c.withSender(m)
		}
	}
	return &cp
}

// --- messages ---

type messageStore struct{ c *core }

func (s *messageStore) Create(ctx context.Context, m *model.Message) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	// Append order defines the ordering key: never let a clock step
	// backwards produce an out-of-order timestamp.
	if last, ok := s.c.lastStamp[m.ConversationID]; ok && m.CreatedAt.Before(last) {
		m.CreatedAt = last
	}
	s.c.lastStamp[m.ConversationID] = m.CreatedAt
	s.c.messages[m.ID] = m.Clone()
	s.c.byConv[m.ConversationID] = append(s.c.byConv[m.ConversationID], m.ID)
	return nil
}

func (s *messageStore) ByID(ctx context.Context, id string) (*model.Message, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	m, ok := s.c.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.c.withSender(m), nil
}

func (s *messageStore) Update(ctx context.Context, id string, mutate func(*model.Message) error) (*model.Message, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	m, ok := s.c.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := m.Clone()
	if err := mutate(cp); err != nil {
		return nil, err
	}
	s.c.messages[id] = cp
	return s.c.withSender(cp), nil
}

func (s *messageStore) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	ids := s.c.byConv[conversationID]
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.c.withSender(s.c.messages[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []model.Message{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- conversations ---

type conversationStore struct{ c *core }

func (s *conversationStore) Create(ctx context.Context, conv *model.Conversation, memberIDs []string) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	cp := *conv
	s.c.conversations[conv.ID] = &cp
	s.c.members[conv.ID] = append([]string(nil), memberIDs...)
	return nil
}

func (s *conversationStore) ByID(ctx context.Context, id string) (*model.Conversation, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	conv, ok := s.c.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.c.expand(conv), nil
}

func (s *conversationStore) UpdateSummary(ctx context.Context, id, lastMessageID string, at time.Time) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	conv, ok := s.c.conversations[id]
	if !ok {
		return store.ErrNotFound
	}
	lm := lastMessageID
	conv.LastMessageID = &lm
	conv.UpdatedAt = at
	return nil
}

func (s *conversationStore) ListByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	out := make([]model.Conversation, 0, 8)
	for id, conv := range s.c.conversations {
		for _, uid := range s.c.members[id] {
			if uid == userID {
				out = append(out, *s.c.expand(conv))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *conversationStore) FindDirect(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for id, conv := range s.c.conversations {
		if conv.IsGroup {
			continue
		}
		var hasA, hasB bool
		for _, uid := range s.c.members[id] {
			hasA = hasA || uid == userA
			hasB = hasB || uid == userB
		}
		if hasA && hasB {
			return s.c.expand(conv), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *conversationStore) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for _, uid := range s.c.members[conversationID] {
		if uid == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *conversationStore) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return append([]string(nil), s.c.members[conversationID]...), nil
}

// --- users ---

type userStore struct{ c *core }

func (s *userStore) Create(ctx context.Context, u *model.User) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	cp := *u
	s.c.users[u.ID] = &cp
	return nil
}

func (s *userStore) ByID(ctx context.Context, id string) (*model.User, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	u, ok := s.c.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) Search(ctx context.Context, query string, limit int) ([]model.UserPublic, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	q := strings.ToLower(query)
	out := make([]model.UserPublic, 0, 8)
	for _, u := range s.c.users {
		if strings.HasPrefix(strings.ToLower(u.Phone), q) ||
			strings.HasPrefix(strings.ToLower(u.Username), q) ||
			strings.HasPrefix(strings.ToLower(u.Name), q) {
			out = append(out, u.ToPublic())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *userStore) SetOnline(ctx context.Context, id string, online bool) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	u, ok := s.c.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsOnline = online
	u.LastSeenAt = time.Now().UTC()
	return nil
}

// --- push subscriptions ---

type subscriptionStore struct{ c *core }

func (s *subscriptionStore) Save(ctx context.Context, sub *store.PushSubscription) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	list := s.c.subs[sub.UserID]
	for i := range list {
		if list[i].Endpoint == sub.Endpoint {
			list[i] = *sub
			return nil
		}
	}
	s.c.subs[sub.UserID] = append(list, *sub)
	return nil
}

func (s *subscriptionStore) Delete(ctx context.Context, userID, endpoint string) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	list := s.c.subs[userID]
	for i := range list {
		if list[i].Endpoint == endpoint {
			s.c.subs[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *subscriptionStore) ListByUser(ctx context.Context, userID string) ([]store.PushSubscription, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return append([]store.PushSubscription(nil), s.c.subs[userID]...), nil
}

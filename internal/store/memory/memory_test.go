package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/store"
)

func seedConversation(t *testing.T, s *Store, convID string, userIDs ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range userIDs {
		if err := s.Users().Create(ctx, &model.User{ID: id, Name: "user " + id}); err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
	}
	conv := &model.Conversation{ID: convID, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := s.Conversations().Create(ctx, conv, userIDs); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
}

func TestMessageOrderSurvivesClockStep(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedConversation(t, s, "c1", "u1")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &model.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Text: "first", CreatedAt: base}
	// Second append carries an earlier wall clock, as after an NTP step.
	second := &model.Message{ID: "m2", ConversationID: "c1", SenderID: "u1", Text: "second", CreatedAt: base.Add(-3 * time.Second)}
	for _, m := range []*model.Message{first, second} {
		if err := s.Messages().Create(ctx, m); err != nil {
			t.Fatalf("create %s: %v", m.ID, err)
		}
	}

	// The clamp is visible to the caller: the hub broadcasts this struct.
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("created_at not clamped on append: %v then %v", first.CreatedAt, second.CreatedAt)
	}

	got, err := s.Messages().ListByConversation(ctx, "c1", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].CreatedAt.Before(got[0].CreatedAt) {
		t.Fatalf("timestamp went backwards: %v then %v", got[0].CreatedAt, got[1].CreatedAt)
	}
}

func TestUpdateSerializesConcurrentReactions(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedConversation(t, s, "c1", "u1")
	msg := &model.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Text: "hi", CreatedAt: time.Now().UTC()}
	if err := s.Messages().Create(ctx, msg); err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Messages().Update(ctx, "m1", func(m *model.Message) error {
				m.Reactions, _ = model.MergeReaction(m.Reactions, "👍", "u1", false)
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Messages().ByID(ctx, "m1")
	if err != nil {
		t.Fatalf("byid: %v", err)
	}
	if len(got.Reactions) != 1 || got.Reactions[0].Count != n {
		t.Fatalf("want single 👍 entry with count %d, got %+v", n, got.Reactions)
	}
}

func TestUpdateDoesNotLeakMutationOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedConversation(t, s, "c1", "u1")
	if err := s.Messages().Create(ctx, &model.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Text: "original", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	wantErr := context.Canceled
	if _, err := s.Messages().Update(ctx, "m1", func(m *model.Message) error {
		m.Text = "mutated"
		return wantErr
	}); err != wantErr {
		t.Fatalf("want mutator error back, got %v", err)
	}
	got, _ := s.Messages().ByID(ctx, "m1")
	if got.Text != "original" {
		t.Fatalf("failed mutation was persisted: %q", got.Text)
	}
}

func TestFindDirectIgnoresOrderAndGroups(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedConversation(t, s, "direct", "u1", "u2")
	seedConversation(t, s, "group", "u1", "u2")
	s.c.mu.Lock()
	s.c.conversations["group"].IsGroup = true
	s.c.mu.Unlock()

	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		conv, err := s.Conversations().FindDirect(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("FindDirect(%v): %v", pair, err)
		}
		if conv.ID != "direct" {
			t.Fatalf("FindDirect(%v) = %s, want direct", pair, conv.ID)
		}
	}

	if _, err := s.Conversations().FindDirect(ctx, "u1", "u3"); err != store.ErrNotFound {
		t.Fatalf("want ErrNotFound for unknown pair, got %v", err)
	}
}

func TestListByUserMostRecentFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedConversation(t, s, "old", "u1")
	seedConversation(t, s, "new", "u1")
	base := time.Now().UTC()
	if err := s.Conversations().UpdateSummary(ctx, "old", "m-old", base.Add(-time.Hour)); err != nil {
		t.Fatalf("summary old: %v", err)
	}
	if err := s.Conversations().UpdateSummary(ctx, "new", "m-new", base); err != nil {
		t.Fatalf("summary new: %v", err)
	}

	got, err := s.Conversations().ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

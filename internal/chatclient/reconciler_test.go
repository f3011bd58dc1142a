package chatclient

import (
	"reflect"
	"testing"
	"time"

	"github.com/Rajatk8400/gochat/internal/model"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, conv, sender, text string, at time.Time) model.Message {
	return model.Message{ID: id, ConversationID: conv, SenderID: sender, Text: text, CreatedAt: at}
}

func openConversation(r *Reconciler, id string) {
	r.SwitchConversation(id)
	r.LoadHistory(nil)
}

func renderedIDs(r *Reconciler) []string {
	msgs := r.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestDuplicateDeliveryIsIdempotent(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")

	m := msg("m1", "c1", "other", "hi", base)
	r.ApplyMessage(m)
	r.ApplyMessage(m)

	if got := renderedIDs(r); !reflect.DeepEqual(got, []string{"m1"}) {
		t.Fatalf("rendered = %v, want single m1", got)
	}
}

func TestArrivalOrderDoesNotBeatTimestampOrder(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")

	// Network delivers newest first.
	r.ApplyMessage(msg("m3", "c1", "other", "three", base.Add(2*time.Second)))
	r.ApplyMessage(msg("m1", "c1", "other", "one", base))
	r.ApplyMessage(msg("m2", "c1", "other", "two", base.Add(time.Second)))

	if got := renderedIDs(r); !reflect.DeepEqual(got, []string{"m1", "m2", "m3"}) {
		t.Fatalf("rendered = %v", got)
	}
}

func TestEqualTimestampsBreakTiesByID(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")

	r.ApplyMessage(msg("m2", "c1", "other", "b", base))
	r.ApplyMessage(msg("m1", "c1", "other", "a", base))

	if got := renderedIDs(r); !reflect.DeepEqual(got, []string{"m1", "m2"}) {
		t.Fatalf("rendered = %v", got)
	}
}

func TestEchoReplacesOptimisticEntry(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")

	r.AddOptimistic(msg("local-1", "c1", "me", "hello", base))
	r.ApplyMessage(msg("srv-1", "c1", "me", "hello", base.Add(time.Second)))

	if got := renderedIDs(r); !reflect.DeepEqual(got, []string{"srv-1"}) {
		t.Fatalf("rendered = %v, want echo to replace pending entry", got)
	}
}

func TestRemoteMessageDoesNotConsumePending(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")

	r.AddOptimistic(msg("local-1", "c1", "me", "hello", base))
	// Someone else happens to send the same text.
	r.ApplyMessage(msg("srv-9", "c1", "other", "hello", base.Add(time.Second)))

	got := renderedIDs(r)
	if len(got) != 2 || got[0] != "srv-9" || got[1] != "local-1" {
		t.Fatalf("rendered = %v, want remote message plus pending entry", got)
	}
}

func TestPendingEntriesRenderAfterConfirmed(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")

	r.AddOptimistic(msg("local-1", "c1", "me", "draft", base))
	r.ApplyMessage(msg("srv-1", "c1", "other", "later", base.Add(time.Minute)))

	if got := renderedIDs(r); !reflect.DeepEqual(got, []string{"srv-1", "local-1"}) {
		t.Fatalf("rendered = %v, want pending entry at the tail", got)
	}
}

func TestHistoryFetchKeepsUnconfirmedPending(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")
	r.AddOptimistic(msg("local-1", "c1", "me", "draft", base))

	r.LoadHistory([]model.Message{
		msg("m1", "c1", "other", "one", base.Add(-time.Minute)),
	})

	if got := renderedIDs(r); !reflect.DeepEqual(got, []string{"m1", "local-1"}) {
		t.Fatalf("rendered = %v", got)
	}
}

func TestConversationListResortsOnMessage(t *testing.T) {
	r := NewReconciler("me")
	r.LoadConversations([]model.Conversation{
		{ID: "c-new", UpdatedAt: base},
		{ID: "c-old", UpdatedAt: base.Add(-time.Hour)},
	})
	openConversation(r, "c-new")

	// A message lands in the stale conversation; it must move to the top
	// even though it is not the open one.
	r.ApplyMessage(msg("m1", "c-old", "other", "ping", base.Add(time.Minute)))

	convs := r.Conversations()
	if convs[0].ID != "c-old" {
		t.Fatalf("conversation order = [%s %s]", convs[0].ID, convs[1].ID)
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Text != "ping" {
		t.Fatalf("summary not updated: %+v", convs[0].LastMessage)
	}
	// The closed conversation's message is not rendered.
	if got := renderedIDs(r); len(got) != 0 {
		t.Fatalf("rendered = %v, want none", got)
	}
}

func TestStaleMessageDoesNotRegressSummary(t *testing.T) {
	r := NewReconciler("me")
	r.LoadConversations([]model.Conversation{{ID: "c1", UpdatedAt: base}})
	openConversation(r, "c1")

	r.ApplyMessage(msg("m-old", "c1", "other", "late arrival", base.Add(-time.Hour)))

	convs := r.Conversations()
	if !convs[0].UpdatedAt.Equal(base) {
		t.Fatalf("summary regressed to %v", convs[0].UpdatedAt)
	}
}

func TestSwitchDiscardsAndRequiresFreshFetch(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")
	r.ApplyMessage(msg("m1", "c1", "other", "one", base))

	r.SwitchConversation("c2")
	if got := renderedIDs(r); len(got) != 0 {
		t.Fatalf("rendered = %v after switch, want none", got)
	}
	// The old conversation's dedup state is gone too; c1's message must not
	// leak into c2.
	r.ApplyMessage(msg("m1", "c1", "other", "one", base))
	if got := renderedIDs(r); len(got) != 0 {
		t.Fatalf("foreign message rendered: %v", got)
	}
}

func TestOptimisticReactionThenAuthoritative(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")
	r.ApplyMessage(msg("m1", "c1", "other", "hi", base))

	r.ReactOptimistic("m1", "👍", false)
	msgs := r.Messages()
	if len(msgs[0].Reactions) != 1 || msgs[0].Reactions[0].Count != 1 {
		t.Fatalf("optimistic reactions = %+v", msgs[0].Reactions)
	}

	// Server response carries the merged truth (someone else reacted too).
	authoritative := msg("m1", "c1", "other", "hi", base)
	authoritative.Reactions = []model.Reaction{{Emoji: "👍", Count: 2, UserID: "me"}}
	r.ApplyAuthoritative(authoritative)

	msgs = r.Messages()
	if msgs[0].Reactions[0].Count != 2 {
		t.Fatalf("authoritative reactions = %+v", msgs[0].Reactions)
	}
}

func TestTypingTracksRemoteOnly(t *testing.T) {
	r := NewReconciler("me")
	openConversation(r, "c1")

	r.SetTyping("c1", "other", "Bob")
	r.SetTyping("c1", "me", "Self")
	r.SetTyping("c2", "stranger", "Eve")

	if got := r.TypingNames(); !reflect.DeepEqual(got, []string{"Bob"}) {
		t.Fatalf("typing = %v", got)
	}
	r.ClearTyping("c1", "other")
	if got := r.TypingNames(); len(got) != 0 {
		t.Fatalf("typing after clear = %v", got)
	}
}

func TestPresenceSnapshotReplaces(t *testing.T) {
	r := NewReconciler("me")
	r.SetOnline([]string{"a", "b"})
	r.SetOnline([]string{"b"})
	if r.Online("a") || !r.Online("b") {
		t.Fatal("snapshot did not replace previous state")
	}
}

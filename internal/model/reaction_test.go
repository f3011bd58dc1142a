package model

import "testing"

func TestMergeReactionAggregates(t *testing.T) {
	var reactions []Reaction
	var ok bool

	reactions, ok = MergeReaction(reactions, "👍", "userA", false)
	if !ok {
		t.Fatal("first reaction rejected")
	}
	reactions, _ = MergeReaction(reactions, "👍", "userA", false)
	reactions, _ = MergeReaction(reactions, "❤️", "userB", false)

	if len(reactions) != 2 {
		t.Fatalf("got %d entries, want 2", len(reactions))
	}
	if reactions[0].Emoji != "👍" || reactions[0].Count != 2 {
		t.Errorf("first entry = %+v, want 👍 count=2", reactions[0])
	}
	if reactions[1].Emoji != "❤️" || reactions[1].Count != 1 {
		t.Errorf("second entry = %+v, want ❤️ count=1", reactions[1])
	}
	if reactions[0].UserID != "userA" {
		t.Errorf("first contributor = %q, want userA", reactions[0].UserID)
	}
}

func TestMergeReactionNeverDuplicatesEmoji(t *testing.T) {
	var reactions []Reaction
	for i := 0; i < 5; i++ {
		reactions, _ = MergeReaction(reactions, "🔥", "u", false)
	}
	if len(reactions) != 1 {
		t.Fatalf("got %d entries for one emoji, want 1", len(reactions))
	}
	if reactions[0].Count != 5 {
		t.Errorf("count = %d, want 5", reactions[0].Count)
	}
}

func TestMergeReactionUniquePerUser(t *testing.T) {
	var reactions []Reaction
	reactions, ok := MergeReaction(reactions, "👍", "userA", true)
	if !ok {
		t.Fatal("first reaction rejected")
	}
	reactions, ok = MergeReaction(reactions, "👍", "userA", true)
	if ok {
		t.Error("repeat reaction by same user accepted under unique policy")
	}
	if reactions[0].Count != 1 {
		t.Errorf("count = %d, want 1", reactions[0].Count)
	}
	reactions, ok = MergeReaction(reactions, "👍", "userB", true)
	if !ok || reactions[0].Count != 2 {
		t.Errorf("distinct user rejected or count wrong: ok=%v count=%d", ok, reactions[0].Count)
	}
}

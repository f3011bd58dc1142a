package model

// Reaction is an aggregated emoji entry on a message. UserID is the first
// contributor; Users records every contributor so the per-user uniqueness
// policy can be enforced when enabled.
type Reaction struct {
	Emoji  string   `json:"emoji"`
	Count  int      `json:"count"`
	UserID string   `json:"user_id,omitempty"`
	Users  []string `json:"users,omitempty"`
}

// MergeReaction folds one react(emoji, userID) call into a reaction list:
// an existing entry for the emoji is incremented, otherwise a new entry with
// count 1 is appended, preserving first-seen order. There is never more than
// one entry per emoji. With uniquePerUser set, a repeat reaction by the same
// identity on the same emoji is a no-op and the second return value is false.
func MergeReaction(reactions []Reaction, emoji, userID string, uniquePerUser bool) ([]Reaction, bool) {
	for i := range reactions {
		if reactions[i].Emoji != emoji {
			continue
		}
		if uniquePerUser {
			for _, u := range reactions[i].Users {
				if u == userID {
					return reactions, false
				}
			}
		}
		reactions[i].Count++
		reactions[i].Users = append(reactions[i].Users, userID)
		return reactions, true
	}
	return append(reactions, Reaction{
		Emoji:  emoji,
		Count:  1,
		UserID: userID,
		Users:  []string{userID},
	}), true
}

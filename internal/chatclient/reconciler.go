// Package chatclient holds the client side of the sync engine: a
// reconciler that folds the server's event stream into locally rendered
// state, and a WebSocket client that drives it.
package chatclient

import (
	"sort"
	"sync"

	"github.com/Rajatk8400/gochat/internal/model"
)

// Reconciler keeps one user's view of the conversation list and the
// currently open conversation consistent with concurrently arriving
// events. Events may arrive out of order, duplicated by the room echo, or
// ahead of the REST fetch they overlap with; every merge here is
// idempotent and ordered by creation timestamp, not arrival.
type Reconciler struct {
	mu     sync.Mutex
	selfID string

	conversations []model.Conversation
	activeID      string

	messages []model.Message
	seen     map[string]struct{}
	// pendingIDs marks optimistic local messages awaiting their echo.
	pendingIDs map[string]struct{}

	typing map[string]string // userID -> display name, active conversation only
	online []string
}

func NewReconciler(selfID string) *Reconciler {
	return &Reconciler{
		selfID:     selfID,
		seen:       make(map[string]struct{}),
		pendingIDs: make(map[string]struct{}),
		typing:     make(map[string]string),
	}
}

// LoadConversations replaces the conversation list with a fresh fetch.
func (r *Reconciler) LoadConversations(convs []model.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations = append([]model.Conversation(nil), convs...)
	r.sortConversationsLocked()
}

// SwitchConversation discards the previous conversation's local state.
// There is no server-side backlog for a newly joined room, so the caller
// must follow up with a re-join and a fresh ordered history fetch.
func (r *Reconciler) SwitchConversation(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = conversationID
	r.messages = nil
	r.seen = make(map[string]struct{})
	r.pendingIDs = make(map[string]struct{})
	r.typing = make(map[string]string)
}

// ActiveConversation returns the id of the open conversation.
func (r *Reconciler) ActiveConversation() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// LoadHistory replaces the open conversation's messages with an
// authoritative ordered fetch. Optimistic entries not yet echoed survive
// at the tail.
func (r *Reconciler) LoadHistory(msgs []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []model.Message
	for _, m := range r.messages {
		if _, ok := r.pendingIDs[m.ID]; ok {
			pending = append(pending, m)
		}
	}
	r.messages = append([]model.Message(nil), msgs...)
	r.seen = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		r.seen[m.ID] = struct{}{}
	}
	r.sortMessagesLocked()
	r.messages = append(r.messages, pending...)
}

// AddOptimistic appends a locally composed message before the server
// confirms it. m.ID is a client-side id, replaced when the echo lands.
func (r *Reconciler) AddOptimistic(m model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ConversationID != r.activeID {
		return
	}
	r.pendingIDs[m.ID] = struct{}{}
	r.messages = append(r.messages, m)
}

// ApplyMessage merges one receive_message event. Redelivery of an id the
// client already holds replaces the held copy in place, which keeps the
// merge idempotent and lets reaction and delete updates ride the same
// event. The room echo of the client's own send replaces the matching
// optimistic entry instead of duplicating it.
func (r *Reconciler) ApplyMessage(m model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bumpConversationLocked(m)

	if m.ConversationID != r.activeID {
		return
	}
	if _, dup := r.seen[m.ID]; dup {
		for i := range r.messages {
			if r.messages[i].ID == m.ID {
				r.messages[i] = m
				break
			}
		}
		return
	}
	r.seen[m.ID] = struct{}{}

	if m.SenderID == r.selfID {
		if i := r.firstPendingMatchLocked(m); i >= 0 {
			delete(r.pendingIDs, r.messages[i].ID)
			r.messages[i] = m
			r.sortMessagesLocked()
			return
		}
	}

	r.messages = append(r.messages, m)
	r.sortMessagesLocked()
}

// ApplyAuthoritative replaces a held message wholesale, used for the
// response to a reaction or delete request and for their broadcasts.
// Unknown ids are ignored; the next history fetch reconciles them.
func (r *Reconciler) ApplyAuthoritative(m model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == m.ID {
			r.messages[i] = m
			return
		}
	}
}

// ReactOptimistic merges a reaction locally before the server confirms.
func (r *Reconciler) ReactOptimistic(messageID, emoji string, uniquePerUser bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == messageID {
			r.messages[i].Reactions, _ = model.MergeReaction(r.messages[i].Reactions, emoji, r.selfID, uniquePerUser)
			return
		}
	}
}

// SetTyping records a remote typist for the open conversation.
func (r *Reconciler) SetTyping(conversationID, userID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conversationID != r.activeID || userID == r.selfID {
		return
	}
	if displayName == "" {
		displayName = userID
	}
	r.typing[userID] = displayName
}

// ClearTyping removes a remote typist.
func (r *Reconciler) ClearTyping(conversationID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conversationID != r.activeID {
		return
	}
	delete(r.typing, userID)
}

// TypingNames returns the display names currently typing, sorted.
func (r *Reconciler) TypingNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.typing))
	for _, name := range r.typing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetOnline replaces the presence snapshot.
func (r *Reconciler) SetOnline(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = append([]string(nil), ids...)
}

// Online reports whether userID is in the last presence snapshot.
func (r *Reconciler) Online(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.online {
		if id == userID {
			return true
		}
	}
	return false
}

// Messages returns the rendered message sequence for the open conversation.
func (r *Reconciler) Messages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Message(nil), r.messages...)
}

// Conversations returns the conversation list, most recent first.
func (r *Reconciler) Conversations() []model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Conversation(nil), r.conversations...)
}

// firstPendingMatchLocked finds the earliest optimistic entry whose content
// matches the echoed message.
func (r *Reconciler) firstPendingMatchLocked(m model.Message) int {
	for i := range r.messages {
		if _, ok := r.pendingIDs[r.messages[i].ID]; !ok {
			continue
		}
		if r.messages[i].Text == m.Text && r.messages[i].FileURL == m.FileURL {
			return i
		}
	}
	return -1
}

// bumpConversationLocked moves m's conversation to the top of the list and
// refreshes its summary. A message for an unknown conversation is ignored;
// the next list fetch picks it up.
func (r *Reconciler) bumpConversationLocked(m model.Message) {
	for i := range r.conversations {
		if r.conversations[i].ID != m.ConversationID {
			continue
		}
		if r.conversations[i].UpdatedAt.After(m.CreatedAt) {
			return
		}
		mCopy := m
		r.conversations[i].LastMessage = &mCopy
		id := m.ID
		r.conversations[i].LastMessageID = &id
		r.conversations[i].UpdatedAt = m.CreatedAt
		r.sortConversationsLocked()
		return
	}
}

func (r *Reconciler) sortMessagesLocked() {
	sort.SliceStable(r.messages, func(i, j int) bool {
		a, b := r.messages[i], r.messages[j]
		// Optimistic entries have no server timestamp yet; keep them last.
		_, aPending := r.pendingIDs[a.ID]
		_, bPending := r.pendingIDs[b.ID]
		if aPending != bPending {
			return bPending
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (r *Reconciler) sortConversationsLocked() {
	sort.SliceStable(r.conversations, func(i, j int) bool {
		return r.conversations[i].UpdatedAt.After(r.conversations[j].UpdatedAt)
	})
}

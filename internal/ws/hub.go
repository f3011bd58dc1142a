package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/store"
)

// PushNotifier delivers web-push notifications. A nil notifier disables push.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// CacheInvalidator drops a user's cached conversation list after a write
// that changes it. A nil invalidator disables caching side effects.
type CacheInvalidator interface {
	InvalidateConversations(ctx context.Context, userID string)
}

// Hub owns the live connection set, the presence registry and the room
// subscriptions. Everything in it is process-local; a restart starts from
// an empty registry and clients re-announce.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	total    int
	maxConns int

	presence *PresenceRegistry
	rooms    *RoomSet

	stores store.Stores
	push   PushNotifier
	cache  CacheInvalidator

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(stores store.Stores, maxConns int, push PushNotifier, cache CacheInvalidator) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxConns:   maxConns,
		presence:   NewPresenceRegistry(),
		rooms:      NewRoomSet(),
		stores:     stores,
		push:       push,
		cache:      cache,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// Rooms exposes the room set for handlers that broadcast outside the event
// loop (reaction and delete endpoints).
func (h *Hub) Rooms() *RoomSet { return h.rooms }

// Presence exposes the registry for handlers needing an online check.
func (h *Hub) Presence() *PresenceRegistry { return h.presence }

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for c := range h.clients {
		allClients = append(allClients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.total++
	h.mu.Unlock()
	// Presence waits for the client's user_online announcement; a connected
	// socket that never announces stays invisible to the snapshot.
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.total--
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
	h.rooms.LeaveAll(c)

	if c.identity != "" && h.presence.Unregister(c.identity, c.presenceGen) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.stores.Users.SetOnline(ctx, c.identity, false); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.identity, err)
		}
		h.broadcastSnapshot()
	}
}

// HandleEvent dispatches incoming WebSocket events.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev IncomingEvent) {
	switch ev.Type {
	case EventUserOnline:
		h.handleUserOnline(ctx, c, ev)
	case EventJoinChat:
		h.handleJoinChat(c, ev)
	case EventSendMessage:
		h.handleSendMessage(ctx, c, ev)
	case EventTyping:
		h.handleTyping(c, ev)
	case EventStopTyping:
		h.handleStopTyping(c, ev)
	default:
		c.TrySend(OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "unknown event type"}})
	}
}

func (h *Hub) handleUserOnline(ctx context.Context, c *Client, ev IncomingEvent) {
	identity := ev.UserID
	if identity == "" {
		identity = c.userID
	}
	if prev := c.identity; prev != "" && prev != identity {
		h.presence.Unregister(prev, c.presenceGen)
	}
	gen, _ := h.presence.Register(identity, c)
	c.identity = identity
	c.presenceGen = gen

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.stores.Users.SetOnline(ctx, identity, true); err != nil {
		logger.Errorf("ws set online user=%s: %v", identity, err)
	}
	h.broadcastSnapshot()
}

func (h *Hub) handleJoinChat(c *Client, ev IncomingEvent) {
	if ev.ConversationID == "" {
		c.TrySend(OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "conversation_id required"}})
		return
	}
	// Subscription is deliberately unvalidated: the caller is trusted and
	// guarded operations re-check membership at the store.
	h.rooms.Join(c, ev.ConversationID)
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, ev IncomingEvent) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if ev.ConversationID == "" || (ev.Text == "" && ev.FileURL == "") {
		c.TrySend(OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "conversation_id and text required"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	isMember, err := h.stores.Conversations.IsMember(ctx, ev.ConversationID, c.userID)
	if err != nil {
		logger.Errorf("ws check membership conversation=%s user=%s: %v", ev.ConversationID, c.userID, err)
		c.TrySend(OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "internal error"}})
		return
	}
	if !isMember {
		c.TrySend(OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "not a member"}})
		return
	}

	var replyToID *string
	if ev.ReplyToID != "" {
		replyToID = &ev.ReplyToID
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: ev.ConversationID,
		SenderID:       c.userID,
		Text:           ev.Text,
		FileURL:        ev.FileURL,
		FileType:       ev.FileType,
		ReplyToID:      replyToID,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.stores.Messages.Create(ctx, m); err != nil {
		logger.Errorf("ws save message conversation=%s user=%s: %v", ev.ConversationID, c.userID, err)
		c.TrySend(OutgoingEvent{Type: EventError, Payload: ErrorPayload{Message: "failed to save message"}})
		return
	}

	// Past this point the message is durable; failures below cost only the
	// real-time push, recovered by the client's next history fetch.
	sender, err := h.stores.Users.ByID(ctx, c.userID)
	if err != nil {
		logger.Errorf("ws get sender user=%s: %v", c.userID, err)
	} else {
		pub := sender.ToPublic()
		m.Sender = &pub
	}

	if replyToID != nil {
		if replyMsg, err := h.stores.Messages.ByID(ctx, *replyToID); err == nil {
			m.ReplyTo = &model.Message{
				ID:       replyMsg.ID,
				SenderID: replyMsg.SenderID,
				Text:     replyMsg.Text,
				FileURL:  replyMsg.FileURL,
				FileType: replyMsg.FileType,
				Sender:   replyMsg.Sender,
			}
		}
	}

	if err := h.stores.Conversations.UpdateSummary(ctx, ev.ConversationID, m.ID, m.CreatedAt); err != nil {
		logger.Errorf("ws update summary conversation=%s: %v", ev.ConversationID, err)
	}

	h.rooms.Broadcast(ev.ConversationID, OutgoingEvent{Type: EventReceiveMessage, Payload: m})

	memberIDs, err := h.stores.Conversations.MemberIDs(ctx, ev.ConversationID)
	if err != nil {
		logger.Errorf("ws get members conversation=%s: %v", ev.ConversationID, err)
		return
	}

	if h.cache != nil {
		for _, uid := range memberIDs {
			h.cache.InvalidateConversations(ctx, uid)
		}
	}

	if h.push != nil {
		senderName := ""
		if m.Sender != nil {
			senderName = m.Sender.Name
		}
		if senderName == "" {
			senderName = "New message"
		}
		body := m.Text
		if body == "" {
			body = "Attachment"
		}
		if len(body) > 120 {
			body = body[:117] + "..."
		}
		data := map[string]string{"conversation_id": ev.ConversationID, "message_id": m.ID}
		for _, uid := range memberIDs {
			if uid != c.userID && !h.presence.Online(uid) {
				go h.push.Notify(context.Background(), uid, senderName, body, data)
			}
		}
	}
}

func (h *Hub) handleTyping(c *Client, ev IncomingEvent) {
	if ev.ConversationID == "" {
		return
	}
	h.rooms.BroadcastExcept(ev.ConversationID, c, OutgoingEvent{
		Type: EventUserTyping,
		Payload: TypingPayload{
			ConversationID: ev.ConversationID,
			UserID:         c.announcedIdentity(),
			DisplayName:    ev.DisplayName,
		},
	})
}

func (h *Hub) handleStopTyping(c *Client, ev IncomingEvent) {
	if ev.ConversationID == "" {
		return
	}
	h.rooms.BroadcastExcept(ev.ConversationID, c, OutgoingEvent{
		Type: EventUserStopTyping,
		Payload: StopTypingPayload{
			ConversationID: ev.ConversationID,
			UserID:         c.announcedIdentity(),
		},
	})
}

func (c *Client) announcedIdentity() string {
	if c.identity != "" {
		return c.identity
	}
	return c.userID
}

// broadcastSnapshot pushes the full current presence set to every
// connection, announced or not.
func (h *Hub) broadcastSnapshot() {
	snapshot := h.presence.Snapshot()
	ev := OutgoingEvent{Type: EventOnlineUsers, Payload: snapshot}

	h.mu.RLock()
	targets := make([]*Client, 0, h.total)
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.TrySend(ev)
	}
}

// BroadcastToRoom sends an event to a conversation's room from outside the
// socket event loop.
func (h *Hub) BroadcastToRoom(conversationID string, ev OutgoingEvent) {
	defer logger.DeferLogDuration("ws.BroadcastToRoom", time.Now())()
	h.rooms.Broadcast(conversationID, ev)
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

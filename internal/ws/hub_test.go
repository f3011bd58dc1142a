package ws

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/store"
	"github.com/Rajatk8400/gochat/internal/store/memory"
)

// fakeConn stands in for a *websocket.Conn so hub logic runs without
// sockets. Reads block until Close.
type fakeConn struct {
	closed chan struct{}
}

func newFakeConn() *fakeConn { return &fakeConn{closed: make(chan struct{})} }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("use of closed connection")
}
func (f *fakeConn) WriteMessage(int, []byte) error  { return nil }
func (f *fakeConn) SetReadLimit(int64)              {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func newTestClient(userID string) *Client {
	return NewClient(nil, newFakeConn(), userID, Tuning{})
}

func recvEvent(t *testing.T, c *Client) OutgoingEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatalf("client %s: no event within 1s", c.userID)
		return OutgoingEvent{}
	}
}

func recvEventOfType(t *testing.T, c *Client, typ EventType) OutgoingEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-c.send:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("client %s: no %s event within 1s", c.userID, typ)
			return OutgoingEvent{}
		}
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("client %s: unexpected event %s", c.userID, ev.Type)
	default:
	}
}

// newTestHub builds a hub over the in-memory store with users u-a, u-b and
// a shared conversation room-1.
func newTestHub(t *testing.T) (*Hub, *memory.Store) {
	t.Helper()
	mem := memory.New()
	ctx := context.Background()
	for _, u := range []*model.User{
		{ID: "u-a", Name: "Alice"},
		{ID: "u-b", Name: "Bob"},
	} {
		if err := mem.Users().Create(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	conv := &model.Conversation{ID: "room-1", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := mem.Conversations().Create(ctx, conv, []string{"u-a", "u-b"}); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return NewHub(mem.Stores(), 0, nil, nil), mem
}

func connect(h *Hub, userID string) *Client {
	c := NewClient(h, newFakeConn(), userID, Tuning{})
	h.addClient(c)
	return c
}

func TestSendMessageDeliveredToRoomIncludingSender(t *testing.T) {
	h, mem := newTestHub(t)
	ctx := context.Background()
	a := connect(h, "u-a")
	b := connect(h, "u-b")

	h.HandleEvent(ctx, a, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})
	h.HandleEvent(ctx, b, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventSendMessage, ConversationID: "room-1", Text: "hi"})

	for _, c := range []*Client{a, b} {
		ev := recvEvent(t, c)
		if ev.Type != EventReceiveMessage {
			t.Fatalf("client %s got %s, want receive_message", c.userID, ev.Type)
		}
		m, ok := ev.Payload.(*model.Message)
		if !ok {
			t.Fatalf("payload type %T", ev.Payload)
		}
		if m.Text != "hi" || m.SenderID != "u-a" {
			t.Fatalf("payload = %+v", m)
		}
		if m.Sender == nil || m.Sender.Name != "Alice" {
			t.Fatalf("sender not expanded: %+v", m.Sender)
		}
	}

	// Summary moved to the new message.
	conv, err := mem.Conversations().ByID(ctx, "room-1")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if conv.LastMessage == nil || conv.LastMessage.Text != "hi" {
		t.Fatalf("summary not updated: %+v", conv.LastMessage)
	}
}

func TestSendMessageTimestampsNeverRegress(t *testing.T) {
	h, mem := newTestHub(t)
	ctx := context.Background()
	a := connect(h, "u-a")
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})

	h.HandleEvent(ctx, a, IncomingEvent{Type: EventSendMessage, ConversationID: "room-1", Text: "one"})
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventSendMessage, ConversationID: "room-1", Text: "two"})

	msgs, err := mem.Messages().ListByConversation(ctx, "room-1", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "one" || msgs[1].Text != "two" {
		t.Fatalf("unexpected sequence: %+v", msgs)
	}
	if msgs[1].CreatedAt.Before(msgs[0].CreatedAt) {
		t.Fatalf("timestamps regressed: %v then %v", msgs[0].CreatedAt, msgs[1].CreatedAt)
	}
}

func TestValidationErrorGoesToSenderOnly(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	a := connect(h, "u-a")
	b := connect(h, "u-b")
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})
	h.HandleEvent(ctx, b, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})

	h.HandleEvent(ctx, a, IncomingEvent{Type: EventSendMessage, ConversationID: "room-1"})

	ev := recvEvent(t, a)
	if ev.Type != EventError {
		t.Fatalf("sender got %s, want error", ev.Type)
	}
	expectNoEvent(t, b)
}

type failingMessages struct {
	store.MessageStore
}

func (f failingMessages) Create(context.Context, *model.Message) error {
	return errors.New("store down")
}

func TestPersistFailureBroadcastsNothing(t *testing.T) {
	h, mem := newTestHub(t)
	h.stores.Messages = failingMessages{mem.Messages()}
	ctx := context.Background()
	a := connect(h, "u-a")
	b := connect(h, "u-b")
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})
	h.HandleEvent(ctx, b, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})

	h.HandleEvent(ctx, a, IncomingEvent{Type: EventSendMessage, ConversationID: "room-1", Text: "hi"})

	ev := recvEvent(t, a)
	if ev.Type != EventError {
		t.Fatalf("sender got %s, want error", ev.Type)
	}
	expectNoEvent(t, b)
}

func TestNonMemberCannotSend(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	outsider := connect(h, "u-x")
	h.HandleEvent(ctx, outsider, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})

	h.HandleEvent(ctx, outsider, IncomingEvent{Type: EventSendMessage, ConversationID: "room-1", Text: "hi"})

	ev := recvEvent(t, outsider)
	if ev.Type != EventError {
		t.Fatalf("got %s, want error", ev.Type)
	}
}

func TestTypingRelayedWithoutEcho(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	a := connect(h, "u-a")
	b := connect(h, "u-b")
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})
	h.HandleEvent(ctx, b, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})

	h.HandleEvent(ctx, a, IncomingEvent{Type: EventTyping, ConversationID: "room-1", DisplayName: "Alice"})

	ev := recvEvent(t, b)
	if ev.Type != EventUserTyping {
		t.Fatalf("got %s, want user_typing", ev.Type)
	}
	p, ok := ev.Payload.(TypingPayload)
	if !ok || p.UserID != "u-a" || p.DisplayName != "Alice" || p.ConversationID != "room-1" {
		t.Fatalf("payload = %+v", ev.Payload)
	}
	expectNoEvent(t, a)

	h.HandleEvent(ctx, a, IncomingEvent{Type: EventStopTyping, ConversationID: "room-1"})
	ev = recvEvent(t, b)
	if ev.Type != EventUserStopTyping {
		t.Fatalf("got %s, want user_stop_typing", ev.Type)
	}
	expectNoEvent(t, a)
}

func TestUserOnlineBroadcastsSnapshotToAll(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	a := connect(h, "u-a")
	b := connect(h, "u-b")

	h.HandleEvent(ctx, a, IncomingEvent{Type: EventUserOnline})
	for _, c := range []*Client{a, b} {
		ev := recvEvent(t, c)
		if ev.Type != EventOnlineUsers {
			t.Fatalf("client %s got %s", c.userID, ev.Type)
		}
		if got := ev.Payload.([]string); !reflect.DeepEqual(got, []string{"u-a"}) {
			t.Fatalf("snapshot = %v", got)
		}
	}

	h.HandleEvent(ctx, b, IncomingEvent{Type: EventUserOnline})
	for _, c := range []*Client{a, b} {
		ev := recvEvent(t, c)
		if got := ev.Payload.([]string); !reflect.DeepEqual(got, []string{"u-a", "u-b"}) {
			t.Fatalf("snapshot = %v", got)
		}
	}

	h.removeClient(a)
	ev := recvEvent(t, b)
	if got := ev.Payload.([]string); !reflect.DeepEqual(got, []string{"u-b"}) {
		t.Fatalf("snapshot after disconnect = %v", got)
	}
}

func TestReplacedConnectionDisconnectKeepsPresence(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	old := connect(h, "u-a")
	h.HandleEvent(ctx, old, IncomingEvent{Type: EventUserOnline})

	fresh := connect(h, "u-a")
	h.HandleEvent(ctx, fresh, IncomingEvent{Type: EventUserOnline})

	// The replaced connection going away must not mark u-a offline.
	h.removeClient(old)
	if !h.presence.Online("u-a") {
		t.Fatal("presence lost after stale disconnect")
	}

	h.removeClient(fresh)
	if h.presence.Online("u-a") {
		t.Fatal("presence survived the live connection's disconnect")
	}
}

func TestDisconnectDropsRoomSubscriptions(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	a := connect(h, "u-a")
	b := connect(h, "u-b")
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})
	h.HandleEvent(ctx, b, IncomingEvent{Type: EventJoinChat, ConversationID: "room-1"})

	h.removeClient(b)
	h.HandleEvent(ctx, a, IncomingEvent{Type: EventSendMessage, ConversationID: "room-1", Text: "hi"})

	recvEventOfType(t, a, EventReceiveMessage)
	expectNoEvent(t, b)
}

func TestUnknownEventReportsError(t *testing.T) {
	h, _ := newTestHub(t)
	a := connect(h, "u-a")
	h.HandleEvent(context.Background(), a, IncomingEvent{Type: "bogus"})
	ev := recvEvent(t, a)
	if ev.Type != EventError {
		t.Fatalf("got %s, want error", ev.Type)
	}
}

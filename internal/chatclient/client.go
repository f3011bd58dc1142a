package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/typing"
	"github.com/Rajatk8400/gochat/internal/ws"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the REST API root, e.g. "http://localhost:8080".
	BaseURL string
	// WSURL is the WebSocket endpoint, e.g. "ws://localhost:8080/ws".
	WSURL       string
	UserID      string
	DisplayName string
	// TypingWindow is the idle duration after which the client emits its own
	// stop_typing. Zero means: ask the server (GET /api/config/chat), then
	// fall back to the 2s default.
	TypingWindow    time.Duration
	UniqueReactions bool
	// Header is attached to the dial request and every REST call (auth).
	Header     http.Header
	HTTPClient *http.Client
}

// serverEvent defers payload decoding until the type is known.
type serverEvent struct {
	Type    ws.EventType    `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client connects the reconciler to a live server: it writes client
// events over the socket, folds server events into the reconciler, and
// runs the keystroke-driven typing debounce.
type Client struct {
	opts    Options
	rec     *Reconciler
	tracker *typing.Tracker

	conn    *websocket.Conn
	writeMu sync.Mutex

	httpClient *http.Client

	// OnError receives server error events. Optional.
	OnError func(message string)
}

// Dial connects and returns a client ready for Listen.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("chatclient: user id required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.WSURL, opts.Header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("chatclient: dial %s: %w (status %d)", opts.WSURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("chatclient: dial %s: %w", opts.WSURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	c := &Client{
		opts:       opts,
		rec:        NewReconciler(opts.UserID),
		conn:       conn,
		httpClient: httpClient,
	}
	window := opts.TypingWindow
	if window == 0 {
		window = typingWindowFromServer(ctx, httpClient, opts.BaseURL, opts.Header)
	}
	// The sender owns its stop signal: the debounce expiring with no
	// renewal emits exactly one stop_typing.
	c.tracker = typing.New(window, func(key typing.Key) {
		if err := c.writeEvent(ws.IncomingEvent{
			Type:           ws.EventStopTyping,
			ConversationID: key.ConversationID,
		}); err != nil {
			logger.Errorf("chatclient stop_typing on expiry: %v", err)
		}
	})
	return c, nil
}

// Reconciler exposes the reconciled local state for rendering.
func (c *Client) Reconciler() *Reconciler { return c.rec }

// Close stops the typing timers and closes the socket.
func (c *Client) Close() error {
	c.tracker.StopAll()
	return c.conn.Close()
}

// AnnounceOnline registers this identity in the server's presence set.
// Called after dial and after every reconnect; the registry holds no
// state across restarts.
func (c *Client) AnnounceOnline() error {
	return c.writeEvent(ws.IncomingEvent{Type: ws.EventUserOnline, UserID: c.opts.UserID})
}

// RefreshConversations fetches the conversation list into the reconciler.
func (c *Client) RefreshConversations(ctx context.Context) error {
	var convs []model.Conversation
	if err := c.getJSON(ctx, "/api/conversations", &convs); err != nil {
		return err
	}
	c.rec.LoadConversations(convs)
	return nil
}

// JoinConversation switches the open conversation: local state for the
// previous one is discarded, the room is re-joined, and history is
// re-fetched in order. The fetch is the recovery path for any event the
// push channel dropped.
func (c *Client) JoinConversation(ctx context.Context, conversationID string) error {
	c.tracker.StopAll()
	c.rec.SwitchConversation(conversationID)
	if err := c.writeEvent(ws.IncomingEvent{Type: ws.EventJoinChat, ConversationID: conversationID}); err != nil {
		return err
	}
	var msgs []model.Message
	if err := c.getJSON(ctx, "/api/conversations/"+conversationID+"/messages", &msgs); err != nil {
		return err
	}
	c.rec.LoadHistory(msgs)
	return nil
}

// SendMessage submits text to the open conversation, cancels the pending
// typing decay and announces the stop, and records an optimistic local
// entry matched later against the room echo.
func (c *Client) SendMessage(text, replyToID string) error {
	conversationID := c.rec.ActiveConversation()
	if conversationID == "" {
		return fmt.Errorf("chatclient: no open conversation")
	}
	if c.tracker.Stop(c.typingKey(conversationID)) {
		if err := c.writeEvent(ws.IncomingEvent{Type: ws.EventStopTyping, ConversationID: conversationID}); err != nil {
			logger.Errorf("chatclient stop_typing on send: %v", err)
		}
	}
	if err := c.writeEvent(ws.IncomingEvent{
		Type:           ws.EventSendMessage,
		ConversationID: conversationID,
		Text:           text,
		ReplyToID:      replyToID,
	}); err != nil {
		return err
	}
	c.rec.AddOptimistic(model.Message{
		ID:             "local-" + uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       c.opts.UserID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	})
	return nil
}

// Typing is called on every keystroke. Only the idle-to-typing transition
// reaches the server; renewals just push the decay window out.
func (c *Client) Typing() error {
	conversationID := c.rec.ActiveConversation()
	if conversationID == "" {
		return nil
	}
	if !c.tracker.Touch(c.typingKey(conversationID)) {
		return nil
	}
	return c.writeEvent(ws.IncomingEvent{
		Type:           ws.EventTyping,
		ConversationID: conversationID,
		UserID:         c.opts.UserID,
		DisplayName:    c.opts.DisplayName,
	})
}

// React merges the reaction locally first, then posts it; the server's
// authoritative message replaces the optimistic merge on response.
func (c *Client) React(ctx context.Context, messageID, emoji string) error {
	c.rec.ReactOptimistic(messageID, emoji, c.opts.UniqueReactions)
	body, err := json.Marshal(map[string]string{"emoji": emoji})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.opts.BaseURL, "/")+"/api/messages/"+messageID+"/react",
		strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeader(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatclient: react: status %d", resp.StatusCode)
	}
	var m model.Message
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return err
	}
	c.rec.ApplyAuthoritative(m)
	return nil
}

// Listen reads server events until the connection drops or ctx is done.
func (c *Client) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev serverEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Errorf("chatclient unmarshal: %v", err)
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev serverEvent) {
	switch ev.Type {
	case ws.EventOnlineUsers:
		var ids []string
		if json.Unmarshal(ev.Payload, &ids) == nil {
			c.rec.SetOnline(ids)
		}
	case ws.EventReceiveMessage:
		var m model.Message
		if json.Unmarshal(ev.Payload, &m) == nil {
			c.rec.ApplyMessage(m)
		}
	case ws.EventUserTyping:
		var p ws.TypingPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			c.rec.SetTyping(p.ConversationID, p.UserID, p.DisplayName)
		}
	case ws.EventUserStopTyping:
		var p ws.StopTypingPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			c.rec.ClearTyping(p.ConversationID, p.UserID)
		}
	case ws.EventError:
		var p ws.ErrorPayload
		if json.Unmarshal(ev.Payload, &p) == nil && c.OnError != nil {
			c.OnError(p.Message)
		}
	}
}

func (c *Client) typingKey(conversationID string) typing.Key {
	return typing.Key{ConversationID: conversationID, Identity: c.opts.UserID}
}

func (c *Client) writeEvent(ev ws.IncomingEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.conn.WriteJSON(ev)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(c.opts.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	c.applyHeader(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatclient: GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) applyHeader(req *http.Request) {
	for k, vals := range c.opts.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}

// typingWindowFromServer asks the server for its typing debounce so both
// sides agree on the decay window. Any failure returns zero, which the
// tracker replaces with its default.
func typingWindowFromServer(ctx context.Context, httpClient *http.Client, baseURL string, header http.Header) time.Duration {
	if baseURL == "" {
		return 0
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(baseURL, "/")+"/api/config/chat", nil)
	if err != nil {
		return 0
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Errorf("chatclient fetch chat config: %v", err)
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0
	}
	var cc struct {
		TypingDebounceSeconds int `json:"typing_debounce_seconds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cc); err != nil || cc.TypingDebounceSeconds <= 0 {
		return 0
	}
	return time.Duration(cc.TypingDebounceSeconds) * time.Second
}

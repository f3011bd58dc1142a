package ws

import "sync"

// RoomSet tracks which connections subscribe to which conversation's event
// stream. Subscription is not validated against conversation membership;
// guarded operations (history fetch, delete) re-check at the store.
type RoomSet struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
}

func NewRoomSet() *RoomSet {
	return &RoomSet{
		rooms:    make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

func (r *RoomSet) Join(c *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(map[*Client]struct{})
	}
	r.rooms[roomID][c] = struct{}{}
	if _, ok := r.byClient[c]; !ok {
		r.byClient[c] = make(map[string]struct{})
	}
	r.byClient[c][roomID] = struct{}{}
}

func (r *RoomSet) Leave(c *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, roomID)
}

// LeaveAll drops every subscription held by c. Called on disconnect.
func (r *RoomSet) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.byClient[c] {
		r.leaveLocked(c, roomID)
	}
}

func (r *RoomSet) leaveLocked(c *Client, roomID string) {
	if members, ok := r.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if rooms, ok := r.byClient[c]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.byClient, c)
		}
	}
}

// Broadcast delivers ev to every connection subscribed to roomID, the
// originating sender included: the sender's reconciliation path is the same
// as every remote recipient's. Delivery is best-effort and non-blocking.
func (r *RoomSet) Broadcast(roomID string, ev OutgoingEvent) {
	for _, c := range r.members(roomID) {
		c.TrySend(ev)
	}
}

// BroadcastExcept is Broadcast minus one connection, used for typing relays
// that must never echo to the typist.
func (r *RoomSet) BroadcastExcept(roomID string, skip *Client, ev OutgoingEvent) {
	for _, c := range r.members(roomID) {
		if c != skip {
			c.TrySend(ev)
		}
	}
}

func (r *RoomSet) members(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Contains reports whether c is subscribed to roomID.
func (r *RoomSet) Contains(c *Client, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][c]
	return ok
}

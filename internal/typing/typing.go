// Package typing tracks per-conversation typing state with a debounce
// window. Each (conversation, identity) key is either idle or typing;
// typing decays back to idle when the window elapses without a renewal.
package typing

import (
	"sync"
	"time"
)

// Key identifies one typist in one conversation.
type Key struct {
	ConversationID string
	Identity       string
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Tracker is safe for concurrent use. The expiry callback runs on the
// timer goroutine, outside the tracker lock, exactly once per decay.
type Tracker struct {
	mu      sync.Mutex
	window  time.Duration
	expire  func(Key)
	entries map[Key]*entry
}

func New(window time.Duration, onExpire func(Key)) *Tracker {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Tracker{
		window:  window,
		expire:  onExpire,
		entries: make(map[Key]*entry),
	}
}

// Touch marks the key as typing and restarts its decay window. It reports
// whether this was an idle-to-typing transition, so callers signal the
// start once and renewals stay silent.
func (t *Tracker) Touch(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if ok {
		// Renewal: cancel the pending decay and arm a new one. The old
		// AfterFunc may already be running; the generation check below
		// makes it a no-op.
		e.timer.Stop()
		e.gen++
		e.timer = t.afterLocked(key, e.gen)
		return false
	}
	e = &entry{}
	e.timer = t.afterLocked(key, e.gen)
	t.entries[key] = e
	return true
}

// Stop cancels the key's decay without firing the callback. It reports
// whether the key was typing.
func (t *Tracker) Stop(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, key)
	return true
}

// Active reports whether the key is currently typing.
func (t *Tracker) Active(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// StopAll cancels every pending decay, firing no callbacks. Used on
// shutdown and on conversation switches.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, key)
	}
}

func (t *Tracker) afterLocked(key Key, gen uint64) *time.Timer {
	return time.AfterFunc(t.window, func() {
		t.mu.Lock()
		e, ok := t.entries[key]
		if !ok || e.gen != gen {
			t.mu.Unlock()
			return
		}
		delete(t.entries, key)
		t.mu.Unlock()
		if t.expire != nil {
			t.expire(key)
		}
	})
}

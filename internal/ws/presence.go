package ws

import (
	"sort"
	"sync"
)

type presenceEntry struct {
	client *Client
	gen    uint64
}

// PresenceRegistry maps an identity to its single live connection.
// Re-registering an identity overwrites the prior entry (last write wins);
// the replaced connection is not notified. Each registration carries a
// monotonic generation number so a late unregister from a replaced
// connection cannot evict its successor.
type PresenceRegistry struct {
	mu      sync.Mutex
	entries map[string]presenceEntry
	nextGen uint64
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{entries: make(map[string]presenceEntry)}
}

// Register binds identity to c and returns the registration's generation.
// It reports whether the identity was previously absent.
func (p *PresenceRegistry) Register(identity string, c *Client) (gen uint64, added bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, existed := p.entries[identity]
	p.nextGen++
	p.entries[identity] = presenceEntry{client: c, gen: p.nextGen}
	return p.nextGen, !existed
}

// Unregister removes the identity's entry only if gen still matches the
// current registration. It reports whether an entry was removed.
func (p *PresenceRegistry) Unregister(identity string, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[identity]
	if !ok || e.gen != gen {
		return false
	}
	delete(p.entries, identity)
	return true
}

// Snapshot returns the full current identity set, sorted for stable output.
func (p *PresenceRegistry) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.entries))
	for id := range p.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Online reports whether the identity has a live registration.
func (p *PresenceRegistry) Online(identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[identity]
	return ok
}

package ws

import (
	"reflect"
	"testing"
)

func TestSnapshotTracksRegisterUnregister(t *testing.T) {
	p := NewPresenceRegistry()
	a := newTestClient("u-a")
	b := newTestClient("u-b")

	genA, added := p.Register("u-a", a)
	if !added {
		t.Fatal("first register should report added")
	}
	genB, _ := p.Register("u-b", b)

	if got := p.Snapshot(); !reflect.DeepEqual(got, []string{"u-a", "u-b"}) {
		t.Fatalf("snapshot = %v", got)
	}

	if !p.Unregister("u-a", genA) {
		t.Fatal("unregister with current generation should succeed")
	}
	if got := p.Snapshot(); !reflect.DeepEqual(got, []string{"u-b"}) {
		t.Fatalf("snapshot after unregister = %v", got)
	}
	_ = genB
}

func TestLastWriteWinsAndStaleUnregister(t *testing.T) {
	p := NewPresenceRegistry()
	old := newTestClient("u-a")
	fresh := newTestClient("u-a")

	oldGen, _ := p.Register("u-a", old)
	_, added := p.Register("u-a", fresh)
	if added {
		t.Fatal("replacing register should not report added")
	}

	// The replaced connection disconnects later; its unregister must not
	// evict the successor.
	if p.Unregister("u-a", oldGen) {
		t.Fatal("stale unregister should be a no-op")
	}
	if !p.Online("u-a") {
		t.Fatal("identity should remain online after stale unregister")
	}
}

func TestSnapshotEmptyAfterAllGone(t *testing.T) {
	p := NewPresenceRegistry()
	c := newTestClient("u-a")
	gen, _ := p.Register("u-a", c)
	p.Unregister("u-a", gen)
	if got := p.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot = %v, want empty", got)
	}
	if p.Online("u-a") {
		t.Fatal("identity should be offline")
	}
}

package typing

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	fired []Key
}

func (r *recorder) record(k Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, k)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestTouchReportsTransitionOnce(t *testing.T) {
	tr := New(time.Hour, nil)
	defer tr.StopAll()
	key := Key{ConversationID: "c1", Identity: "u1"}

	if !tr.Touch(key) {
		t.Fatal("first Touch should report idle-to-typing")
	}
	if tr.Touch(key) {
		t.Fatal("renewal should not report a transition")
	}
	if !tr.Active(key) {
		t.Fatal("key should be active")
	}
}

func TestExpiryFiresExactlyOnce(t *testing.T) {
	rec := &recorder{}
	tr := New(20*time.Millisecond, rec.record)
	key := Key{ConversationID: "c1", Identity: "u1"}

	tr.Touch(key)
	time.Sleep(100 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Fatalf("expiry fired %d times, want 1", got)
	}
	if tr.Active(key) {
		t.Fatal("key should have decayed to idle")
	}
	// A decayed key starts a fresh cycle.
	if !tr.Touch(key) {
		t.Fatal("Touch after decay should report a transition again")
	}
	tr.StopAll()
}

func TestTouchRenewsWindow(t *testing.T) {
	rec := &recorder{}
	tr := New(50*time.Millisecond, rec.record)
	key := Key{ConversationID: "c1", Identity: "u1"}

	tr.Touch(key)
	for i := 0; i < 4; i++ {
		time.Sleep(25 * time.Millisecond)
		tr.Touch(key)
	}
	if got := rec.count(); got != 0 {
		t.Fatalf("renewed key expired %d times", got)
	}
	time.Sleep(150 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Fatalf("expiry fired %d times after renewals stopped, want 1", got)
	}
}

func TestStopSuppressesExpiry(t *testing.T) {
	rec := &recorder{}
	tr := New(20*time.Millisecond, rec.record)
	key := Key{ConversationID: "c1", Identity: "u1"}

	tr.Touch(key)
	if !tr.Stop(key) {
		t.Fatal("Stop on an active key should report true")
	}
	if tr.Stop(key) {
		t.Fatal("second Stop should report false")
	}
	time.Sleep(80 * time.Millisecond)
	if got := rec.count(); got != 0 {
		t.Fatalf("stopped key still expired %d times", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	rec := &recorder{}
	tr := New(30*time.Millisecond, rec.record)
	a := Key{ConversationID: "c1", Identity: "u1"}
	b := Key{ConversationID: "c1", Identity: "u2"}

	tr.Touch(a)
	tr.Touch(b)
	tr.Stop(a)
	time.Sleep(120 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.fired) != 1 || rec.fired[0] != b {
		t.Fatalf("want only %v to expire, got %v", b, rec.fired)
	}
}

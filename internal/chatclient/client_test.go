package chatclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTypingWindowFetchedFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/config/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"typing_debounce_seconds":5,"reactions_unique_per_user":false,"max_message_size":4096}`))
	}))
	defer srv.Close()

	got := typingWindowFromServer(context.Background(), srv.Client(), srv.URL, nil)
	if got != 5*time.Second {
		t.Fatalf("window = %v, want 5s", got)
	}
}

func TestTypingWindowFallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if got := typingWindowFromServer(context.Background(), srv.Client(), srv.URL, nil); got != 0 {
		t.Fatalf("window = %v, want 0 so the tracker default applies", got)
	}
	if got := typingWindowFromServer(context.Background(), srv.Client(), "", nil); got != 0 {
		t.Fatalf("window without base URL = %v, want 0", got)
	}
}

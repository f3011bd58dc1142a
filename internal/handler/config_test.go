package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rajatk8400/gochat/internal/config"
)

func TestChatConfigReflectsSettings(t *testing.T) {
	h := NewConfigHandler(&config.Config{
		TypingDebounce:         3 * time.Second,
		ReactionsUniquePerUser: true,
		WSMaxMessageSize:       2048,
	})

	rec := httptest.NewRecorder()
	h.GetChatConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config/chat", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var cc ChatConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cc.TypingDebounceSeconds != 3 || !cc.ReactionsUniquePerUser || cc.MaxMessageSize != 2048 {
		t.Fatalf("chat config = %+v", cc)
	}
}

package handler

import (
	"net/http"

	"github.com/Rajatk8400/gochat/internal/config"
)

// ConfigHandler exposes the runtime knobs clients must agree with the
// server on.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// ChatConfig is the shape of GET /api/config/chat.
type ChatConfig struct {
	TypingDebounceSeconds  int  `json:"typing_debounce_seconds"`
	ReactionsUniquePerUser bool `json:"reactions_unique_per_user"`
	MaxMessageSize         int  `json:"max_message_size"`
}

// GetChatConfig returns the typing debounce window, the reaction policy
// and the frame size limit, so clients do not hardcode them.
func (h *ConfigHandler) GetChatConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ChatConfig{
		TypingDebounceSeconds:  int(h.cfg.TypingDebounce.Seconds()),
		ReactionsUniquePerUser: h.cfg.ReactionsUniquePerUser,
		MaxMessageSize:         h.cfg.WSMaxMessageSize,
	})
}

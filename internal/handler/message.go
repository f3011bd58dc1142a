package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/middleware"
	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/store"
	"github.com/Rajatk8400/gochat/internal/ws"
)

type MessageHandler struct {
	stores store.Stores
	hub    *ws.Hub
	// uniquePerUser limits each identity to one count per emoji.
	uniquePerUser bool
}

func NewMessageHandler(stores store.Stores, hub *ws.Hub, uniquePerUser bool) *MessageHandler {
	return &MessageHandler{stores: stores, hub: hub, uniquePerUser: uniquePerUser}
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

// React merges one reaction into the message and returns the updated
// message. The read-modify-write serializes inside the store, so
// concurrent reactions never lose increments. Room members get the
// updated message over the live channel.
func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	var req reactRequest
	if err := decodeBody(r, &req); err != nil || req.Emoji == "" {
		writeError(w, http.StatusBadRequest, "emoji required")
		return
	}

	original, err := h.stores.Messages.ByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		logger.Errorf("react get message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !h.requireMember(w, r, original.ConversationID, userID) {
		return
	}

	updated, err := h.stores.Messages.Update(r.Context(), messageID, func(m *model.Message) error {
		merged, ok := model.MergeReaction(m.Reactions, req.Emoji, userID, h.uniquePerUser)
		if !ok {
			return nil
		}
		m.Reactions = merged
		return nil
	})
	if err != nil {
		logger.Errorf("react update message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to react")
		return
	}

	if h.hub != nil {
		h.hub.BroadcastToRoom(updated.ConversationID, ws.OutgoingEvent{
			Type:    ws.EventReceiveMessage,
			Payload: updated,
		})
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete soft-deletes a message. Only the sender may delete; the cleared
// message is pushed to the room so every client drops the content.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	original, err := h.stores.Messages.ByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		logger.Errorf("delete get message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if original.SenderID != userID {
		writeError(w, http.StatusForbidden, "can only delete own messages")
		return
	}

	updated, err := h.stores.Messages.Update(r.Context(), messageID, func(m *model.Message) error {
		m.IsDeleted = true
		m.Text = ""
		m.FileURL = ""
		m.FileType = ""
		return nil
	})
	if err != nil {
		logger.Errorf("delete message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete")
		return
	}

	if h.hub != nil {
		h.hub.BroadcastToRoom(updated.ConversationID, ws.OutgoingEvent{
			Type:    ws.EventReceiveMessage,
			Payload: updated,
		})
	}
	writeJSON(w, http.StatusOK, updated)
}

// MarkRead records the caller in the message's reader set.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	original, err := h.stores.Messages.ByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !h.requireMember(w, r, original.ConversationID, userID) {
		return
	}

	updated, err := h.stores.Messages.Update(r.Context(), messageID, func(m *model.Message) error {
		for _, id := range m.ReadBy {
			if id == userID {
				return nil
			}
		}
		m.ReadBy = append(m.ReadBy, userID)
		return nil
	})
	if err != nil {
		logger.Errorf("mark read message %s: %v", messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *MessageHandler) requireMember(w http.ResponseWriter, r *http.Request, conversationID, userID string) bool {
	isMember, err := h.stores.Conversations.IsMember(r.Context(), conversationID, userID)
	if err != nil {
		logger.Errorf("check membership conversation=%s user=%s: %v", conversationID, userID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if !isMember {
		writeError(w, http.StatusForbidden, "not a member")
		return false
	}
	return true
}

package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Rajatk8400/gochat/internal/cache"
	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/middleware"
	"github.com/Rajatk8400/gochat/internal/model"
	"github.com/Rajatk8400/gochat/internal/store"
)

type ConversationHandler struct {
	stores store.Stores
	cache  cache.ConversationCache // nil disables caching
}

func NewConversationHandler(stores store.Stores, convCache cache.ConversationCache) *ConversationHandler {
	return &ConversationHandler{stores: stores, cache: convCache}
}

// List returns the caller's conversations, most recent first. The result
// is cached per user; the hub invalidates on every ingest.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if h.cache != nil {
		if convs, ok, err := h.cache.GetConversations(r.Context(), userID); err == nil && ok {
			writeJSON(w, http.StatusOK, convs)
			return
		} else if err != nil {
			logger.Errorf("conversation list cache get user=%s: %v", userID, err)
		}
	}

	convs, err := h.stores.Conversations.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Errorf("conversation list user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if h.cache != nil {
		if err := h.cache.SetConversations(r.Context(), userID, convs); err != nil {
			logger.Errorf("conversation list cache set user=%s: %v", userID, err)
		}
	}
	writeJSON(w, http.StatusOK, convs)
}

type openDirectRequest struct {
	UserID string `json:"user_id"`
}

// OpenDirect returns the direct conversation with the given user, creating
// it on first contact. At most one direct conversation exists per pair.
func (h *ConversationHandler) OpenDirect(w http.ResponseWriter, r *http.Request) {
	var req openDirectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	currentUserID := middleware.GetUserID(r.Context())
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if req.UserID == currentUserID {
		writeError(w, http.StatusBadRequest, "cannot open a conversation with yourself")
		return
	}

	existing, err := h.stores.Conversations.FindDirect(r.Context(), currentUserID, req.UserID)
	if err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		logger.Errorf("find direct conversation %s/%s: %v", currentUserID, req.UserID, err)
		writeError(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	if _, err := h.stores.Users.ByID(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.stores.Conversations.Create(r.Context(), conv, []string{currentUserID, req.UserID}); err != nil {
		logger.Errorf("create direct conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	h.invalidate(r, currentUserID, req.UserID)

	created, err := h.stores.Conversations.ByID(r.Context(), conv.ID)
	if err != nil {
		writeJSON(w, http.StatusCreated, conv)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type createGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// CreateGroup creates a group conversation with the caller as admin.
func (h *ConversationHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	currentUserID := middleware.GetUserID(r.Context())
	if req.Name == "" || len(req.MemberIDs) == 0 {
		writeError(w, http.StatusBadRequest, "name and member_ids required")
		return
	}

	memberIDs := []string{currentUserID}
	seen := map[string]struct{}{currentUserID: {}}
	for _, id := range req.MemberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, err := h.stores.Users.ByID(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, "member not found: "+id)
			return
		}
		seen[id] = struct{}{}
		memberIDs = append(memberIDs, id)
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		IsGroup:   true,
		Name:      req.Name,
		AdminID:   currentUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.stores.Conversations.Create(r.Context(), conv, memberIDs); err != nil {
		logger.Errorf("create group conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	h.invalidate(r, memberIDs...)

	created, err := h.stores.Conversations.ByID(r.Context(), conv.ID)
	if err != nil {
		writeJSON(w, http.StatusCreated, conv)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Get returns a single conversation the caller belongs to.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if !h.requireMember(w, r, conversationID, userID) {
		return
	}
	conv, err := h.stores.Conversations.ByID(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		logger.Errorf("get conversation %s: %v", conversationID, err)
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Messages returns the conversation's history in ascending creation order.
// This fetch is the recovery path for any event the push channel missed,
// so membership is enforced here even though room subscribe is not.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if !h.requireMember(w, r, conversationID, userID) {
		return
	}

	limit := queryInt(r, "limit", 100)
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	offset := queryInt(r, "offset", 0)

	msgs, err := h.stores.Messages.ListByConversation(r.Context(), conversationID, limit, offset)
	if err != nil {
		logger.Errorf("list messages conversation=%s: %v", conversationID, err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *ConversationHandler) requireMember(w http.ResponseWriter, r *http.Request, conversationID, userID string) bool {
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

func (h *ConversationHandler) invalidate(r *http.Request, userIDs ...string) {
	if h.cache == nil {
		return
	}
	for _, uid := range userIDs {
		if err := h.cache.Invalidate(r.Context(), uid); err != nil {
			logger.Errorf("conversation cache invalidate user=%s: %v", uid, err)
		}
	}
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Rajatk8400/gochat/internal/logger"
	"github.com/Rajatk8400/gochat/internal/middleware"
	"github.com/Rajatk8400/gochat/internal/store"
)

type UserHandler struct {
	stores store.Stores
}

func NewUserHandler(stores store.Stores) *UserHandler {
	return &UserHandler{stores: stores}
}

// Me returns the caller's own record.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.stores.Users.ByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("get user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Get returns another user's public fields.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.stores.Users.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("get user %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, u.ToPublic())
}

// Search finds users by phone, username or name prefix.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q required")
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	users, err := h.stores.Users.Search(r.Context(), query, limit)
	if err != nil {
		logger.Errorf("search users %q: %v", query, err)
		writeError(w, http.StatusInternalServerError, "failed to search")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

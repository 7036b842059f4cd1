package handlers

import (
	"net/http"

	"github.com/dom/league-chat/internal/websocket"
	"github.com/go-chi/chi/v5"
)

type PresenceHandler struct {
	presence *websocket.PresenceTracker
}

func NewPresenceHandler(presence *websocket.PresenceTracker) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

type PresenceResponse struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	Sessions int    `json:"sessions"`
}

type OnlineUsersResponse struct {
	Online []string `json:"online"`
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	sessions := h.presence.SessionCount(username)

	writeJSON(w, http.StatusOK, PresenceResponse{
		Username: username,
		Online:   sessions > 0,
		Sessions: sessions,
	})
}

func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OnlineUsersResponse{Online: h.presence.OnlineUsers()})
}

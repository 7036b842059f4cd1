package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/dom/league-chat/internal/api/middleware"
	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/service"
	"github.com/dom/league-chat/internal/websocket"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPollWait = 25 * time.Second
	maxPollWait     = 55 * time.Second
)

// PollHandler serves the long-poll fallback for clients that cannot hold a
// websocket open. Frames are identical to the websocket transport.
type PollHandler struct {
	hub     *websocket.Hub
	gateway *service.ConnectionGateway
	sender  websocket.MessageSender
}

func NewPollHandler(hub *websocket.Hub, gateway *service.ConnectionGateway, sender websocket.MessageSender) *PollHandler {
	return &PollHandler{
		hub:     hub,
		gateway: gateway,
		sender:  sender,
	}
}

func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	admission, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		middleware.WriteRejection(w, domain.ErrCredentialRequired)
		return
	}

	session, err := h.gateway.Bind(admission, domain.TransportPoll)
	if err != nil {
		middleware.WriteRejection(w, err)
		return
	}

	client := websocket.NewPollClient(h.hub, session, h.sender)
	if err := h.hub.Register(client); err != nil {
		log.Printf("ERROR [handlers.Poll.Create] register session %s: %v", session.ID, err)
		writeError(w, err, "Failed to open session")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *PollHandler) Events(w http.ResponseWriter, r *http.Request) {
	client, ok := h.ownedClient(w, r)
	if !ok {
		return
	}

	wait := defaultPollWait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_WAIT", Message: "Invalid wait duration"})
			return
		}
		wait = min(parsed, maxPollWait)
	}

	frames, err := client.Poll(r.Context(), wait)
	if err != nil {
		writeError(w, err, "Session closed")
		return
	}

	writeJSON(w, http.StatusOK, frames)
}

func (h *PollHandler) Send(w http.ResponseWriter, r *http.Request) {
	client, ok := h.ownedClient(w, r)
	if !ok {
		return
	}

	var req websocket.SendMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidMessage, "Invalid request body")
		return
	}

	message, err := client.SendChat(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailure) {
			log.Printf("ERROR [handlers.Poll.Send] session %s: %v", client.Session().ID, err)
		}
		writeError(w, err, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(message))
}

func (h *PollHandler) Close(w http.ResponseWriter, r *http.Request) {
	client, ok := h.ownedClient(w, r)
	if !ok {
		return
	}

	h.hub.Unregister(client)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PollHandler) ownedClient(w http.ResponseWriter, r *http.Request) (*websocket.Client, bool) {
	admission, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		middleware.WriteRejection(w, domain.ErrCredentialRequired)
		return nil, false
	}

	sessionID := chi.URLParam(r, "sessionId")
	client := h.hub.Client(sessionID)
	if client == nil || client.Session().Transport != domain.TransportPoll {
		writeError(w, domain.ErrSessionNotFound, "Session not found")
		return nil, false
	}
	if client.Username() != admission.Username {
		writeError(w, domain.ErrNotSessionOwner, "Session belongs to another user")
		return nil, false
	}

	return client, true
}

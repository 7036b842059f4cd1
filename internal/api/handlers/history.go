package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/dom/league-chat/internal/api/middleware"
	"github.com/dom/league-chat/internal/config"
	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/service"
	"github.com/go-chi/chi/v5"
)

type HistoryHandler struct {
	historyService  *service.HistoryService
	defaultPageSize int
	maxPageSize     int
}

func NewHistoryHandler(historyService *service.HistoryService, cfg *config.Config) *HistoryHandler {
	return &HistoryHandler{
		historyService:  historyService,
		defaultPageSize: cfg.HistoryDefaultPageSize,
		maxPageSize:     cfg.HistoryMaxPageSize,
	}
}

// GetConversation returns the caller's conversation with a peer, ascending.
func (h *HistoryHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	admission, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		middleware.WriteRejection(w, domain.ErrCredentialRequired)
		return
	}

	peer := chi.URLParam(r, "peerUsername")
	if peer == "" {
		writeError(w, domain.ErrInvalidMessage, "Peer username is required")
		return
	}

	page, err := queryInt(r, "page", 0)
	if err != nil {
		writeError(w, domain.ErrInvalidPagination, "Invalid page")
		return
	}
	size, err := queryInt(r, "size", h.defaultPageSize)
	if err != nil {
		writeError(w, domain.ErrInvalidPagination, "Invalid size")
		return
	}
	size = min(size, h.maxPageSize)

	messages, err := h.historyService.GetConversation(r.Context(), admission.Username, peer, page, size)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPagination) {
			writeError(w, err, "Page must be >= 0 and size > 0")
			return
		}
		log.Printf("ERROR [handlers.History.GetConversation] %s/%s: %v", admission.Username, peer, err)
		writeError(w, err, "Failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dom/league-chat/internal/domain"
	"github.com/samber/lo"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MessageResponse struct {
	ID                string `json:"id"`
	SenderUsername    string `json:"senderUsername"`
	RecipientUsername string `json:"recipientUsername"`
	Content           string `json:"content"`
	Timestamp         int64  `json:"timestamp"`
}

func toMessageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:                m.ID.String(),
		SenderUsername:    m.SenderUsername,
		RecipientUsername: m.RecipientUsername,
		Content:           m.Content,
		Timestamp:         m.Timestamp,
	}
}

func toMessageResponses(messages []*domain.Message) []MessageResponse {
	return lo.Map(messages, func(m *domain.Message, _ int) MessageResponse {
		return toMessageResponse(m)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR [handlers.writeJSON] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error, message string) {
	writeJSON(w, statusFor(err), ErrorResponse{
		Code:    domain.ReasonCode(err),
		Message: message,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidPagination):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCredentialRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotSessionOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

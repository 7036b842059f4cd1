package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/dom/league-chat/internal/api/middleware"
	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/service"
)

type AuthHandler struct {
	identities *service.IdentityResolver
}

func NewAuthHandler(identities *service.IdentityResolver) *AuthHandler {
	return &AuthHandler{identities: identities}
}

type MeResponse struct {
	Anonymous bool                   `json:"anonymous"`
	ID        string                 `json:"id,omitempty"`
	Username  string                 `json:"username,omitempty"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
}

// Me describes the caller. Anonymous callers get {"anonymous": true}.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	admission, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, MeResponse{Anonymous: true})
		return
	}

	resp := MeResponse{
		ID:       admission.IdentityID,
		Username: admission.Username,
	}

	identity, err := h.identities.Resolve(r.Context(), admission.IdentityID)
	switch {
	case err == nil:
		resp.Claims = identity.Claims
	case errors.Is(err, domain.ErrIdentityNotFound):
	default:
		log.Printf("ERROR [handlers.Auth.Me] resolve identity %s: %v", admission.IdentityID, err)
	}

	writeJSON(w, http.StatusOK, resp)
}

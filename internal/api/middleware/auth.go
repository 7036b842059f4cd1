package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/service"
)

type contextKey string

const (
	AdmissionKey contextKey = "admission"
)

// Auth runs the connection handshake on every request. Requests without an
// Authorization header pass through anonymously; a present but invalid
// credential is rejected with 401.
func Auth(gateway *service.ConnectionGateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admission, err := gateway.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				WriteRejection(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), AdmissionKey, admission)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests. It must run after Auth.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipal(r.Context()); !ok {
			log.Printf("ERROR [middleware.RequireAuth] anonymous request to %s", r.URL.Path)
			WriteRejection(w, domain.ErrCredentialRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetAdmission returns the handshake outcome stored by Auth.
func GetAdmission(ctx context.Context) (*service.Admission, bool) {
	admission, ok := ctx.Value(AdmissionKey).(*service.Admission)
	return admission, ok
}

// GetPrincipal returns the admission only when the caller is authenticated.
func GetPrincipal(ctx context.Context) (*service.Admission, bool) {
	admission, ok := GetAdmission(ctx)
	if !ok || admission.State != service.StateConnected {
		return nil, false
	}
	return admission, true
}

type rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteRejection answers 401 with the reason code of a failed handshake.
func WriteRejection(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(rejection{
		Code:    domain.ReasonCode(err),
		Message: rejectionMessage(err),
	})
}

func rejectionMessage(err error) string {
	switch domain.ReasonCode(err) {
	case "CREDENTIAL_REQUIRED":
		return "Authorization required"
	case "MALFORMED_CREDENTIAL":
		return "Malformed credential"
	case "INVALID_SIGNATURE":
		return "Invalid token signature"
	case "EXPIRED":
		return "Token expired"
	case "MISSING_SUBJECT":
		return "Token has no subject"
	case "UNRESOLVED_IDENTITY":
		return "Identity could not be resolved"
	default:
		return "Unauthorized"
	}
}

package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dom/league-chat/internal/domain"
	"github.com/google/uuid"
)

// ConnState is the handshake state of a connection attempt.
type ConnState int

const (
	StateUnauthenticated ConnState = iota
	StateAuthenticating
	StateConnected
	StateRejected
)

func (s ConnState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Admission is the outcome of a handshake. Session is set only when the
// state is StateConnected.
type Admission struct {
	State      ConnState
	IdentityID string
	Username   string
	Session    *domain.Session
	Reason     error
}

func (a *Admission) Anonymous() bool {
	return a.State == StateUnauthenticated
}

type ConnectionGateway struct {
	authService *AuthService
	identities  *IdentityResolver
}

func NewConnectionGateway(authService *AuthService, identities *IdentityResolver) *ConnectionGateway {
	return &ConnectionGateway{
		authService: authService,
		identities:  identities,
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", domain.ErrMalformedCredential
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authenticate runs the handshake without minting a session. An empty header
// yields an anonymous admission and no error. Rejections are terminal; the
// client retries with a fresh token.
func (g *ConnectionGateway) Authenticate(ctx context.Context, authorization string) (*Admission, error) {
	admission := &Admission{State: StateUnauthenticated}
	if authorization == "" {
		return admission, nil
	}

	admission.State = StateAuthenticating

	token, err := BearerToken(authorization)
	if err != nil {
		return g.reject(admission, err)
	}

	claims, err := g.authService.VerifyToken(ctx, token)
	if err != nil {
		return g.reject(admission, err)
	}

	username := claims.Username
	if username == "" {
		identity, err := g.identities.Resolve(ctx, claims.Subject)
		if err != nil {
			return g.reject(admission, fmt.Errorf("%w: %s: %v", domain.ErrUnresolvedIdentity, claims.Subject, err))
		}
		username = identity.Username
	}

	admission.State = StateConnected
	admission.IdentityID = claims.Subject
	admission.Username = username
	return admission, nil
}

// Admit authenticates a connection and binds it to a fresh session. Every
// admitted connection gets its own session id, even for the same user.
func (g *ConnectionGateway) Admit(ctx context.Context, authorization string, transport domain.Transport) (*Admission, error) {
	if authorization == "" {
		return g.reject(&Admission{State: StateUnauthenticated}, domain.ErrCredentialRequired)
	}

	admission, err := g.Authenticate(ctx, authorization)
	if err != nil {
		return admission, err
	}

	if _, err := g.Bind(admission, transport); err != nil {
		return admission, err
	}
	return admission, nil
}

// Bind attaches a fresh session to an already connected admission.
func (g *ConnectionGateway) Bind(admission *Admission, transport domain.Transport) (*domain.Session, error) {
	if admission == nil || admission.State != StateConnected {
		return nil, domain.ErrCredentialRequired
	}

	admission.Session = &domain.Session{
		ID:          uuid.NewString(),
		Username:    admission.Username,
		ConnectedAt: time.Now(),
		Transport:   transport,
	}
	return admission.Session, nil
}

func (g *ConnectionGateway) reject(admission *Admission, err error) (*Admission, error) {
	log.Printf("ERROR [service.ConnectionGateway] handshake rejected (%s): %v", domain.ReasonCode(err), err)
	admission.State = StateRejected
	admission.Reason = err
	return admission, err
}

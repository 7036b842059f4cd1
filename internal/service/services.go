package service

import (
	"github.com/dom/league-chat/internal/config"
	"github.com/dom/league-chat/internal/repository"
)

// Realtime is the presence and delivery side of the websocket hub.
type Realtime interface {
	PresenceLookup
	Deliverer
}

type Services struct {
	Auth     *AuthService
	Identity *IdentityResolver
	Gateway  *ConnectionGateway
	Message  *MessageService
	History  *HistoryService
}

func NewServices(repos *repository.Repositories, keys KeySource, realtime Realtime, cfg *config.Config) *Services {
	identity := NewIdentityResolver(repos.Identity)
	auth := NewAuthService(keys, identity, cfg)

	return &Services{
		Auth:     auth,
		Identity: identity,
		Gateway:  NewConnectionGateway(auth, identity),
		Message:  NewMessageService(repos.Message, realtime, realtime, cfg.MaxContentLength),
		History:  NewHistoryService(repos.Message),
	}
}

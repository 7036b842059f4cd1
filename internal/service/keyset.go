package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/dom/league-chat/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

var ErrKeySetClosed = errors.New("key set closed")

// KeySource resolves the verification key for a parsed token.
type KeySource interface {
	Keyfunc(token *jwt.Token) (interface{}, error)
}

// KeySet caches the identity provider's published keys by key id. Nothing is
// fetched until the first token is verified; unknown key ids trigger a
// rate-limited refresh. Every fetch is bounded by the configured timeout and a
// failed fetch fails verification.
type KeySet struct {
	url     string
	options keyfunc.Options
	cancel  context.CancelFunc

	loading singleflight.Group
	mu      sync.RWMutex
	jwks    *keyfunc.JWKS
	closed  bool
}

func NewKeySet(cfg *config.Config) *KeySet {
	ctx, cancel := context.WithCancel(context.Background())

	return &KeySet{
		url:    cfg.JWKSURL,
		cancel: cancel,
		options: keyfunc.Options{
			Ctx:               ctx,
			Client:            &http.Client{Timeout: cfg.KeySetFetchTimeout},
			RefreshTimeout:    cfg.KeySetFetchTimeout,
			RefreshRateLimit:  cfg.KeySetRefreshRateLimit,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Printf("ERROR [service.KeySet] key set refresh failed: %v", err)
			},
		},
	}
}

func (k *KeySet) Keyfunc(token *jwt.Token) (interface{}, error) {
	jwks, err := k.load()
	if err != nil {
		return nil, err
	}
	return jwks.Keyfunc(token)
}

func (k *KeySet) load() (*keyfunc.JWKS, error) {
	k.mu.RLock()
	jwks, closed := k.jwks, k.closed
	k.mu.RUnlock()
	if closed {
		return nil, ErrKeySetClosed
	}
	if jwks != nil {
		return jwks, nil
	}

	v, err, _ := k.loading.Do(k.url, func() (interface{}, error) {
		jwks, err := keyfunc.Get(k.url, k.options)
		if err != nil {
			return nil, fmt.Errorf("fetch key set from %s: %w", k.url, err)
		}

		k.mu.Lock()
		defer k.mu.Unlock()
		if k.closed {
			jwks.EndBackground()
			return nil, ErrKeySetClosed
		}
		if k.jwks == nil {
			k.jwks = jwks
		}
		return k.jwks, nil
	})
	if err != nil {
		log.Printf("ERROR [service.KeySet] %v", err)
		return nil, err
	}
	return v.(*keyfunc.JWKS), nil
}

// Close stops background refreshes. Verification fails after Close.
func (k *KeySet) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return
	}
	k.closed = true
	if k.jwks != nil {
		k.jwks.EndBackground()
	}
	k.cancel()
}

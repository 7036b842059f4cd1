package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dom/league-chat/internal/config"
	"github.com/dom/league-chat/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified content of a bearer token.
type Claims struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
	// Extra holds the non-registered claims (email, image_url, ...).
	Extra map[string]interface{}
}

var registeredClaims = map[string]bool{
	"iss": true, "sub": true, "aud": true, "exp": true,
	"nbf": true, "iat": true, "jti": true,
}

// AuthService verifies provider-issued tokens and keeps the identity store in
// sync with the claims it sees.
type AuthService struct {
	keys       KeySource
	identities *IdentityResolver
	parser     *jwt.Parser
}

func NewAuthService(keys KeySource, identities *IdentityResolver, cfg *config.Config) *AuthService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "EdDSA"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	return &AuthService{
		keys:       keys,
		identities: identities,
		parser:     jwt.NewParser(opts...),
	}
}

func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, mapClaims, s.keys.Keyfunc)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidSignature
	}

	subject, err := mapClaims.GetSubject()
	if err != nil || subject == "" {
		return nil, domain.ErrMissingSubject
	}

	claims := &Claims{
		Subject:  subject,
		Username: usernameClaim(mapClaims),
		Extra:    make(map[string]interface{}),
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	for k, v := range mapClaims {
		if !registeredClaims[k] {
			claims.Extra[k] = v
		}
	}

	if claims.Username == "" {
		log.Printf("WARN [service.AuthService] token for %s carries no username, skipping identity sync", subject)
		return claims, nil
	}

	if err := s.identities.Sync(ctx, subject, claims.Username, claims.Extra); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			log.Printf("WARN [service.AuthService] %s presented username %q owned by another identity", subject, claims.Username)
			return nil, fmt.Errorf("%w: %w", domain.ErrUnresolvedIdentity, err)
		}
		log.Printf("ERROR [service.AuthService] identity sync for %s failed: %v", subject, err)
	}

	return claims, nil
}

func usernameClaim(claims jwt.MapClaims) string {
	for _, key := range []string{"username", "preferred_username"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", domain.ErrMalformedCredential, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", domain.ErrMalformedCredential, err)
	default:
		// Unverifiable (no key, key set unavailable), bad signature, wrong
		// algorithm or issuer: never admitted.
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
}

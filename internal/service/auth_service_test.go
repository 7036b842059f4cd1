package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/league-chat/internal/config"
	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/repository"
	"github.com/dom/league-chat/internal/service"
	"github.com/dom/league-chat/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	tokens  *testutil.TokenIssuer
	cfg     *config.Config
	repos   *repository.Repositories
	auth    *service.AuthService
	gateway *service.ConnectionGateway
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	tokens := testutil.NewTokenIssuer(t)
	cfg := testutil.TestConfig(tokens.JWKSURL())
	repos := testutil.NewBadgerRepositories(t)

	keys := service.NewKeySet(cfg)
	t.Cleanup(keys.Close)

	identities := service.NewIdentityResolver(repos.Identity)
	auth := service.NewAuthService(keys, identities, cfg)

	return &authFixture{
		tokens:  tokens,
		cfg:     cfg,
		repos:   repos,
		auth:    auth,
		gateway: service.NewConnectionGateway(auth, identities),
	}
}

func TestAuthService_VerifyToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	hmacToken := func(t *testing.T) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":      "user-1",
			"username": "alice",
			"iss":      testutil.TestIssuer,
			"exp":      time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("shared-secret"))
		require.NoError(t, err)
		return signed
	}

	tests := []struct {
		name         string
		token        func(t *testing.T) string
		wantErr      error
		wantUsername string
	}{
		{
			name: "valid token",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithUsername("alice").Build(t)
			},
			wantUsername: "alice",
		},
		{
			name: "preferred_username fallback",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithPreferredUsername("bob").Build(t)
			},
			wantUsername: "bob",
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithUsername("alice").ExpiredAt(time.Now().Add(-time.Minute)).Build(t)
			},
			wantErr: domain.ErrExpired,
		},
		{
			name: "expiring this second",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithUsername("alice").ExpiredAt(time.Now()).Build(t)
			},
			wantErr: domain.ErrExpired,
		},
		{
			name: "signed by unknown key",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithUsername("alice").SignedWith(testutil.NewForeignKey(t)).Build(t)
			},
			wantErr: domain.ErrInvalidSignature,
		},
		{
			name:    "symmetric algorithm",
			token:   hmacToken,
			wantErr: domain.ErrInvalidSignature,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithUsername("alice").WithClaim("iss", "https://elsewhere.test").Build(t)
			},
			wantErr: domain.ErrInvalidSignature,
		},
		{
			name:    "not a token",
			token:   func(t *testing.T) string { return "not-a-jwt" },
			wantErr: domain.ErrMalformedCredential,
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithUsername("alice").WithoutExpiry().Build(t)
			},
			wantErr: domain.ErrMalformedCredential,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				return testutil.NewTokenBuilder(f.tokens).WithUsername("alice").WithoutSubject().Build(t)
			},
			wantErr: domain.ErrMissingSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := f.auth.VerifyToken(ctx, tt.token(t))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, claims.Subject)
			assert.Equal(t, tt.wantUsername, claims.Username)
			assert.True(t, claims.ExpiresAt.After(time.Now()))
		})
	}
}

func TestAuthService_SyncsIdentity(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	builder := testutil.NewTokenBuilder(f.tokens).WithUsername("alice").WithClaim("email", "alice@example.test")
	subject := builder.Subject()

	_, err := f.auth.VerifyToken(ctx, builder.Build(t))
	require.NoError(t, err)

	identity, err := f.repos.Identity.GetByID(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "alice@example.test", identity.Claims["email"])

	// A later token with a new username renames the identity
	_, err = f.auth.VerifyToken(ctx, testutil.NewTokenBuilder(f.tokens).WithSubject(subject).WithUsername("alice2").Build(t))
	require.NoError(t, err)

	identity, err = f.repos.Identity.GetByID(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, "alice2", identity.Username)

	_, err = f.repos.Identity.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestAuthService_RejectsTakenUsername(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auth.VerifyToken(ctx, f.tokens.Token(t, "alice"))
	require.NoError(t, err)

	claims, err := f.auth.VerifyToken(ctx, testutil.NewTokenBuilder(f.tokens).WithUsername("alice").Build(t))
	assert.ErrorIs(t, err, domain.ErrUnresolvedIdentity)
	assert.Nil(t, claims)

	// The original holder is still admitted
	_, err = f.auth.VerifyToken(ctx, f.tokens.Token(t, "alice"))
	assert.NoError(t, err)
}

func TestAuthService_KeySetUnavailable(t *testing.T) {
	tokens := testutil.NewTokenIssuer(t)
	cfg := testutil.TestConfig(tokens.JWKSURL())
	cfg.KeySetFetchTimeout = 500 * time.Millisecond
	token := tokens.Token(t, "alice")
	tokens.Server.Close()

	keys := service.NewKeySet(cfg)
	t.Cleanup(keys.Close)
	repos := testutil.NewBadgerRepositories(t)
	auth := service.NewAuthService(keys, service.NewIdentityResolver(repos.Identity), cfg)

	_, err := auth.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestKeySet_ClosedRejects(t *testing.T) {
	tokens := testutil.NewTokenIssuer(t)
	cfg := testutil.TestConfig(tokens.JWKSURL())

	keys := service.NewKeySet(cfg)
	keys.Close()
	keys.Close()

	repos := testutil.NewBadgerRepositories(t)
	auth := service.NewAuthService(keys, service.NewIdentityResolver(repos.Identity), cfg)

	_, err := auth.VerifyToken(context.Background(), tokens.Token(t, "alice"))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

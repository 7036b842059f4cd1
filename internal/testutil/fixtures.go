package testutil

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TestIssuer = "https://identity.test"
	testKeyID  = "test-key"
)

// TokenIssuer is an in-test identity provider publishing one RSA key.
type TokenIssuer struct {
	Key    *rsa.PrivateKey
	Server *httptest.Server
}

func NewTokenIssuer(t *testing.T) *TokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	jwks := map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &TokenIssuer{Key: key, Server: server}
}

func (i *TokenIssuer) JWKSURL() string {
	return i.Server.URL + "/.well-known/jwks.json"
}

// Token issues a valid one hour token for a fresh subject.
func (i *TokenIssuer) Token(t *testing.T, username string) string {
	t.Helper()
	return NewTokenBuilder(i).WithSubject(SubjectFor(username)).WithUsername(username).Build(t)
}

// SubjectFor is the stable subject Token uses for username.
func SubjectFor(username string) string {
	return "subject-" + username
}

// TokenBuilder creates signed tokens with a builder pattern
type TokenBuilder struct {
	key    *rsa.PrivateKey
	method jwt.SigningMethod
	claims jwt.MapClaims
	keyID  string
}

// NewTokenBuilder creates a builder for a valid token with a random subject
func NewTokenBuilder(issuer *TokenIssuer) *TokenBuilder {
	now := time.Now()
	return &TokenBuilder{
		key:    issuer.Key,
		method: jwt.SigningMethodRS256,
		keyID:  testKeyID,
		claims: jwt.MapClaims{
			"sub": uuid.NewString(),
			"iss": TestIssuer,
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		},
	}
}

func (b *TokenBuilder) WithSubject(subject string) *TokenBuilder {
	b.claims["sub"] = subject
	return b
}

func (b *TokenBuilder) WithoutSubject() *TokenBuilder {
	delete(b.claims, "sub")
	return b
}

func (b *TokenBuilder) WithUsername(username string) *TokenBuilder {
	b.claims["username"] = username
	return b
}

// WithPreferredUsername sets the fallback username claim only
func (b *TokenBuilder) WithPreferredUsername(username string) *TokenBuilder {
	b.claims["preferred_username"] = username
	return b
}

func (b *TokenBuilder) WithClaim(name string, value interface{}) *TokenBuilder {
	b.claims[name] = value
	return b
}

// ExpiredAt sets exp; a past time yields an expired token
func (b *TokenBuilder) ExpiredAt(at time.Time) *TokenBuilder {
	b.claims["exp"] = at.Unix()
	return b
}

func (b *TokenBuilder) WithoutExpiry() *TokenBuilder {
	delete(b.claims, "exp")
	return b
}

// SignedWith signs with a key the identity provider never published
func (b *TokenBuilder) SignedWith(key *rsa.PrivateKey) *TokenBuilder {
	b.key = key
	return b
}

// Build signs the token
func (b *TokenBuilder) Build(t *testing.T) string {
	t.Helper()

	token := jwt.NewWithClaims(b.method, b.claims)
	token.Header["kid"] = b.keyID

	signed, err := token.SignedString(b.key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// Subject returns the sub claim the token will carry
func (b *TokenBuilder) Subject() string {
	sub, _ := b.claims["sub"].(string)
	return sub
}

// NewForeignKey returns an RSA key unknown to every TokenIssuer
func NewForeignKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

// MessageBuilder seeds conversation history directly in a repository
type MessageBuilder struct {
	sender    string
	recipient string
	content   string
	timestamp int64
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		sender:    "alice",
		recipient: "bob",
		content:   fmt.Sprintf("message_%s", uuid.New().String()[:8]),
		timestamp: time.Now().UnixMilli(),
	}
}

func (b *MessageBuilder) From(sender string) *MessageBuilder {
	b.sender = sender
	return b
}

func (b *MessageBuilder) To(recipient string) *MessageBuilder {
	b.recipient = recipient
	return b
}

func (b *MessageBuilder) WithContent(content string) *MessageBuilder {
	b.content = content
	return b
}

func (b *MessageBuilder) At(timestamp int64) *MessageBuilder {
	b.timestamp = timestamp
	return b
}

// Build persists the message and returns it
func (b *MessageBuilder) Build(t *testing.T, repo repository.MessageRepository) *domain.Message {
	t.Helper()

	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("failed to generate id: %v", err)
	}

	message := &domain.Message{
		ID:                id,
		SenderUsername:    b.sender,
		RecipientUsername: b.recipient,
		Content:           b.content,
		Timestamp:         b.timestamp,
	}
	if err := repo.Create(context.Background(), message); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	return message
}

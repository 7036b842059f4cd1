//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_realtime.go -package=mocks
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PresenceLookup answers whether a user has at least one active session.
type PresenceLookup interface {
	IsOnline(ctx context.Context, username string) (bool, error)
}

// Deliverer pushes a message onto a user's private channel. It must not block.
type Deliverer interface {
	DeliverToUser(username string, message *domain.Message)
}

type SendInput struct {
	Sender    string `validate:"required"`
	Recipient string `validate:"required,max=64"`
	Content   string
}

var validate = validator.New()

// MessageService persists direct messages and pushes them to online recipients.
//
// It does not check that sender and recipient are friends. Callers outside
// the realtime core must enforce that precondition before calling Send.
type MessageService struct {
	messageRepo      repository.MessageRepository
	presence         PresenceLookup
	deliverer        Deliverer
	maxContentLength int
	metrics          *messageMetrics
}

func NewMessageService(messageRepo repository.MessageRepository, presence PresenceLookup, deliverer Deliverer, maxContentLength int) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		presence:         presence,
		deliverer:        deliverer,
		maxContentLength: maxContentLength,
		metrics:          newMessageMetrics(),
	}
}

// Send validates, persists and then pushes a message. Persistence is the
// delivery guarantee; the push is best-effort and never retried. Input.Sender
// must be the username bound to the caller's session. The id and timestamp are
// always assigned here.
func (s *MessageService) Send(ctx context.Context, input SendInput) (*domain.Message, error) {
	if err := s.validate(input); err != nil {
		s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", domain.ReasonCode(err))))
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	message := &domain.Message{
		ID:                id,
		SenderUsername:    input.Sender,
		RecipientUsername: input.Recipient,
		Content:           input.Content,
		Timestamp:         time.Now().UnixMilli(),
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		log.Printf("ERROR [service.MessageService] persist message %s -> %s failed: %v", input.Sender, input.Recipient, err)
		s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "PERSISTENCE_FAILURE")))
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	s.metrics.persisted.Add(ctx, 1)

	online, err := s.presence.IsOnline(ctx, input.Recipient)
	if err != nil {
		log.Printf("WARN [service.MessageService] %v: %v, treating %s as offline", domain.ErrPresenceLookupFailure, err, input.Recipient)
		online = false
	}

	if online {
		s.deliverer.DeliverToUser(input.Recipient, message)
		s.metrics.pushed.Add(ctx, 1)
	}

	return message, nil
}

func (s *MessageService) validate(input SendInput) error {
	if strings.TrimSpace(input.Content) == "" {
		return domain.ErrEmptyContent
	}
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if s.maxContentLength > 0 && utf8.RuneCountInString(input.Content) > s.maxContentLength {
		return fmt.Errorf("%w: content longer than %d characters", domain.ErrInvalidMessage, s.maxContentLength)
	}
	return nil
}

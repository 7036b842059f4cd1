package domain

import (
	"github.com/google/uuid"
)

type Message struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	SenderUsername    string    `json:"senderUsername" gorm:"not null;index:idx_messages_pair,priority:1"`
	RecipientUsername string    `json:"recipientUsername" gorm:"not null;index:idx_messages_pair,priority:2"`
	Content           string    `json:"content" gorm:"type:text;not null"`
	Timestamp         int64     `json:"timestamp" gorm:"not null;index:idx_messages_pair,priority:3"`
}

// Involves reports whether the message belongs to the conversation between a and b.
func (m *Message) Involves(a, b string) bool {
	return (m.SenderUsername == a && m.RecipientUsername == b) ||
		(m.SenderUsername == b && m.RecipientUsername == a)
}

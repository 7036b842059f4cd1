package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Client to Server
	MessageTypeSendMessage MessageType = "SEND_MESSAGE"

	// Server to Client
	MessageTypeConnected   MessageType = "CONNECTED"
	MessageTypePresence    MessageType = "PRESENCE"
	MessageTypeChatMessage MessageType = "CHAT_MESSAGE"
	MessageTypeMessageAck  MessageType = "MESSAGE_ACK"
	MessageTypeError       MessageType = "ERROR"
)

// Destinations name the logical channel a frame travels on.
const (
	DestinationSend     = "/app/chat.send"
	DestinationPresence = "/topic/presence"
	DestinationPrivate  = "/user/queue/messages"
)

type Message struct {
	Type        MessageType     `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// WithDestination sets the destination and returns the message.
func (m *Message) WithDestination(destination string) *Message {
	m.Destination = destination
	return m
}

func encode(msgType MessageType, destination string, payload interface{}) ([]byte, error) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg.WithDestination(destination))
}

package domain

import "time"

type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportPoll      Transport = "poll"
)

// Session is one authenticated connection. It is never persisted.
type Session struct {
	ID          string    `json:"sessionId"`
	Username    string    `json:"username"`
	ConnectedAt time.Time `json:"connectedAt"`
	Transport   Transport `json:"transport"`
}

package websocket

// Client to Server payloads

// SendMessagePayload is accepted on DestinationSend. Any senderUsername or
// timestamp a client includes is not decoded at all; the server assigns both.
type SendMessagePayload struct {
	RecipientUsername string `json:"recipientUsername"`
	Content           string `json:"content"`
}

// Server to Client payloads

type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

type PresencePayload struct {
	Event    PresenceEvent `json:"event"`
	Username string        `json:"username"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

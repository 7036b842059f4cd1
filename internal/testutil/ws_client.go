package testutil

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient connects with a bearer token in the Authorization header
func NewWSClient(t *testing.T, url, token string) *WSClient {
	t.Helper()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := DialWS(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("failed to connect to websocket (status %d): %v", status, err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// DialWS dials without failing the test, for handshake rejection cases
func DialWS(url string, header http.Header) (*gorillaWS.Conn, *http.Response, error) {
	dialer := *gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second
	return dialer.Dial(url, header)
}

// readPump reads messages from the WebSocket connection
func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				case c.errors <- err:
				}
				return
			}

			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.errors <- err
				continue
			}

			select {
			case c.messages <- &msg:
			case <-c.done:
				return
			}
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// SendRaw writes a frame as is
func (c *WSClient) SendRaw(msg *websocket.Message) {
	c.t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send message: %v", err)
	}
}

// SendChat sends a SEND_MESSAGE frame to /app/chat.send
func (c *WSClient) SendChat(recipient, content string) {
	c.t.Helper()

	msg, err := websocket.NewMessage(websocket.MessageTypeSendMessage, websocket.SendMessagePayload{
		RecipientUsername: recipient,
		Content:           content,
	})
	if err != nil {
		c.t.Fatalf("failed to build message: %v", err)
	}
	c.SendRaw(msg.WithDestination(websocket.DestinationSend))
}

// ExpectMessage waits for a message of the specified type, skipping others
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for %s: %v", msgType, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
		}
	}
}

// ExpectConnected waits for and decodes the CONNECTED frame
func (c *WSClient) ExpectConnected(timeout time.Duration) *websocket.ConnectedPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeConnected, timeout)

	var payload websocket.ConnectedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode connected payload: %v", err)
	}

	return &payload
}

// ExpectPresence waits for and decodes a PRESENCE frame
func (c *WSClient) ExpectPresence(timeout time.Duration) *websocket.PresencePayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypePresence, timeout)
	if msg.Destination != websocket.DestinationPresence {
		c.t.Fatalf("presence on unexpected destination %q", msg.Destination)
	}

	var payload websocket.PresencePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode presence payload: %v", err)
	}

	return &payload
}

// ExpectPresenceOf waits for a specific presence transition, skipping others
func (c *WSClient) ExpectPresenceOf(event websocket.PresenceEvent, username string, timeout time.Duration) {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		payload := c.ExpectPresence(time.Until(deadline))
		if payload.Event == event && payload.Username == username {
			return
		}
	}
}

// ExpectChat waits for and decodes a CHAT_MESSAGE frame
func (c *WSClient) ExpectChat(timeout time.Duration) *domain.Message {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeChatMessage, timeout)
	if msg.Destination != websocket.DestinationPrivate {
		c.t.Fatalf("chat on unexpected destination %q", msg.Destination)
	}

	var payload domain.Message
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode chat payload: %v", err)
	}

	return &payload
}

// ExpectAck waits for and decodes a MESSAGE_ACK frame
func (c *WSClient) ExpectAck(timeout time.Duration) *domain.Message {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeMessageAck, timeout)

	var payload domain.Message
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode ack payload: %v", err)
	}

	return &payload
}

// ExpectError waits for and decodes an ERROR message
func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeError, timeout)

	var payload websocket.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode error payload: %v", err)
	}

	return &payload
}

// ExpectErrorWithCode waits for an error with a specific code
func (c *WSClient) ExpectErrorWithCode(code string, timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	payload := c.ExpectError(timeout)
	if payload.Code != code {
		c.t.Fatalf("expected error code %s, got %s: %s", code, payload.Code, payload.Message)
	}

	return payload
}

// ExpectNoMessageOfType verifies no frame of msgType arrives within timeout
func (c *WSClient) ExpectNoMessageOfType(msgType websocket.MessageType, timeout time.Duration) {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg != nil && msg.Type == msgType {
				c.t.Fatalf("unexpected %s received", msgType)
			}
			if msg == nil {
				return
			}
		case <-deadline:
			return
		}
	}
}

// DrainMessages drains all pending messages from the channel with a timeout.
func (c *WSClient) DrainMessages() {
	c.DrainMessagesWithTimeout(100 * time.Millisecond)
}

// DrainMessagesWithTimeout drains messages, waiting up to timeout for the channel to settle.
func (c *WSClient) DrainMessagesWithTimeout(timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
			// More might be coming
			deadline = time.After(50 * time.Millisecond)
		case <-deadline:
			return
		case <-c.done:
			return
		}
	}
}

// ExpectClosed waits for the server to end the connection
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
		case <-c.errors:
			return
		case <-deadline:
			c.t.Fatalf("timeout waiting for connection to close")
		}
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/service"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendTimeout    = 10 * time.Second
)

// MessageSender routes a direct message on behalf of a session.
type MessageSender interface {
	Send(ctx context.Context, input service.SendInput) (*domain.Message, error)
}

// Client is one session. Websocket sessions carry a conn and run the two
// pumps; poll sessions have no conn and are drained by Poll.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *domain.Session
	sender  MessageSender
	send    chan []byte

	lifecycle  sync.Mutex
	registered bool
	closed     bool

	sendMu     sync.Mutex // serializes poll sends
	lastSeen   atomic.Int64
	polling    atomic.Int32
	overflowed atomic.Bool // set once a frame was refused; nothing is queued after
}

func NewClient(hub *Hub, conn *websocket.Conn, session *domain.Session, sender MessageSender) *Client {
	c := &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		sender:  sender,
		send:    make(chan []byte, hub.queueSize),
	}
	c.Touch()
	return c
}

func NewPollClient(hub *Hub, session *domain.Session, sender MessageSender) *Client {
	return NewClient(hub, nil, session, sender)
}

func (c *Client) Session() *domain.Session {
	return c.session
}

func (c *Client) Username() string {
	return c.session.Username
}

// Touch records activity on a poll session.
func (c *Client) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) idleSince(now time.Time) time.Duration {
	if c.polling.Load() > 0 {
		return 0
	}
	return now.Sub(time.Unix(0, c.lastSeen.Load()))
}

func (c *Client) ReadPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	pongWait := c.hub.heartbeat
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN [websocket.ReadPump] session %s: %v", c.session.ID, err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(domain.ReasonCode(domain.ErrInvalidMessage), "Invalid frame")
			continue
		}

		c.handleMessage(ctx, &msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.heartbeat * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *Message) {
	switch msg.Type {
	case MessageTypeSendMessage:
		if msg.Destination != "" && msg.Destination != DestinationSend {
			c.sendError(domain.ReasonCode(domain.ErrInvalidMessage), "Unknown destination")
			return
		}

		var payload SendMessagePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError(domain.ReasonCode(domain.ErrInvalidMessage), "Invalid send message payload")
			return
		}

		message, err := c.SendChat(ctx, payload)
		if err != nil {
			c.sendError(domain.ReasonCode(err), err.Error())
			return
		}
		c.sendFrame(MessageTypeMessageAck, DestinationPrivate, message)

	default:
		c.sendError(domain.ReasonCode(domain.ErrInvalidMessage), "Unsupported message type")
	}
}

// SendChat sends a direct message as this session's user. Sends from one
// session are processed one at a time, in arrival order.
func (c *Client) SendChat(ctx context.Context, payload SendMessagePayload) (*domain.Message, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.Touch()

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	return c.sender.Send(ctx, service.SendInput{
		Sender:    c.session.Username,
		Recipient: payload.RecipientUsername,
		Content:   payload.Content,
	})
}

// Poll waits up to wait for at least one queued frame, then returns everything
// queued without blocking further. A closed session with nothing left
// returns domain.ErrSessionClosed.
func (c *Client) Poll(ctx context.Context, wait time.Duration) ([]json.RawMessage, error) {
	c.polling.Add(1)
	defer func() {
		c.Touch()
		c.polling.Add(-1)
	}()

	frames := make([]json.RawMessage, 0)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case data, ok := <-c.send:
		if !ok {
			return nil, domain.ErrSessionClosed
		}
		frames = append(frames, data)
	case <-timer.C:
		return frames, nil
	case <-ctx.Done():
		return frames, nil
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return frames, nil
			}
			frames = append(frames, data)
		default:
			return frames, nil
		}
	}
}

func (c *Client) sendFrame(msgType MessageType, destination string, payload interface{}) {
	data, err := encode(msgType, destination, payload)
	if err != nil {
		log.Printf("ERROR [websocket.sendFrame] encode %s: %v", msgType, err)
		return
	}
	c.hub.sendTo(c, data)
}

func (c *Client) sendError(code, message string) {
	c.sendFrame(MessageTypeError, "", ErrorPayload{
		Code:    code,
		Message: message,
	})
}

// IsClosed reports whether the session has been unregistered.
func (c *Client) IsClosed() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.closed
}

package websocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dom/league-chat/internal/domain"
	"github.com/samber/lo"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub owns every registered session and their delivery queues. It implements
// the presence lookup and private delivery used by the message service.
//
// Lock order is Client.lifecycle, then PresenceTracker.mu, then Hub.mu.
type Hub struct {
	clients   map[string]*Client            // sessionID -> client
	users     map[string]map[string]*Client // username -> sessionID -> client
	presence  *PresenceTracker
	heartbeat time.Duration
	queueSize int
	stop      chan struct{}
	done      chan struct{} // closed when Run() exits
	started   bool
	stopped   bool
	mu        sync.RWMutex
}

func NewHub(heartbeat time.Duration, queueSize int) *Hub {
	h := &Hub{
		clients:   make(map[string]*Client),
		users:     make(map[string]map[string]*Client),
		heartbeat: heartbeat,
		queueSize: queueSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	h.presence = NewPresenceTracker(h)
	return h
}

// Run reaps idle poll sessions until Stop is called.
func (h *Hub) Run() {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	defer close(h.done)

	ticker := time.NewTicker(h.heartbeat / 2)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			h.reapIdle(now)
		}
	}
}

// Stop disconnects every session and blocks until Run has exited.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	started := h.started
	clients := lo.Values(h.clients)
	h.mu.Unlock()

	close(h.stop)
	if started {
		<-h.done
	}

	for _, client := range clients {
		h.Unregister(client)
	}
}

func (h *Hub) Presence() *PresenceTracker {
	return h.presence
}

func (h *Hub) Heartbeat() time.Duration {
	return h.heartbeat
}

// Register adds a client, marks the user online and queues its CONNECTED
// frame. A client that was already unregistered cannot be registered again.
func (h *Hub) Register(client *Client) error {
	client.lifecycle.Lock()
	defer client.lifecycle.Unlock()

	if client.closed {
		return domain.ErrSessionClosed
	}
	if client.registered {
		return nil
	}

	session := client.session
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	h.clients[session.ID] = client
	if h.users[session.Username] == nil {
		h.users[session.Username] = make(map[string]*Client)
	}
	h.users[session.Username][session.ID] = client
	h.mu.Unlock()
	client.registered = true

	// CONNECTED is queued only once the session counts as online
	h.presence.Register(session.ID, session.Username)

	data, err := encode(MessageTypeConnected, "", ConnectedPayload{
		SessionID: session.ID,
		Username:  session.Username,
	})
	if err != nil {
		log.Printf("ERROR [websocket.Register] encode connected frame: %v", err)
	} else {
		h.sendTo(client, data)
	}
	log.Printf("INFO [websocket.Register] session %s registered for %s (%s)", session.ID, session.Username, session.Transport)
	return nil
}

// Unregister removes a client and closes its queue. Safe to call more than once
// and from any goroutine.
func (h *Hub) Unregister(client *Client) {
	client.lifecycle.Lock()
	defer client.lifecycle.Unlock()

	if client.closed {
		return
	}
	client.closed = true
	if !client.registered {
		return
	}

	session := client.session
	h.mu.Lock()
	if current, ok := h.clients[session.ID]; ok && current == client {
		delete(h.clients, session.ID)
		if sessions := h.users[session.Username]; sessions != nil {
			delete(sessions, session.ID)
			if len(sessions) == 0 {
				delete(h.users, session.Username)
			}
		}
		close(client.send)
	}
	h.mu.Unlock()

	h.presence.Deregister(session.ID)
	log.Printf("INFO [websocket.Unregister] session %s closed for %s", session.ID, session.Username)
}

// Client returns the registered client for a session id, or nil.
func (h *Hub) Client(sessionID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[sessionID]
}

func (h *Hub) IsOnline(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrPresenceLookupFailure, err)
	}

	h.mu.RLock()
	stopped := h.stopped
	h.mu.RUnlock()
	if stopped {
		return false, fmt.Errorf("%w: %w", domain.ErrPresenceLookupFailure, ErrHubStopped)
	}
	return h.presence.IsOnline(username), nil
}

// DeliverToUser queues a CHAT_MESSAGE frame on every session of username.
func (h *Hub) DeliverToUser(username string, message *domain.Message) {
	data, err := encode(MessageTypeChatMessage, DestinationPrivate, message)
	if err != nil {
		log.Printf("ERROR [websocket.DeliverToUser] encode message %s: %v", message.ID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.users[username] {
		h.enqueueLocked(client, data)
	}
}

// PublishPresence queues a PRESENCE frame on every session. Called by the
// tracker while it holds its own lock.
func (h *Hub) PublishPresence(event PresenceEvent, username string) {
	data, err := encode(MessageTypePresence, DestinationPresence, PresencePayload{
		Event:    event,
		Username: username,
	})
	if err != nil {
		log.Printf("ERROR [websocket.PublishPresence] encode presence: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.enqueueLocked(client, data)
	}
}

// sendTo queues data on a single client if it is still registered.
func (h *Hub) sendTo(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if current, ok := h.clients[client.session.ID]; ok && current == client {
		h.enqueueLocked(client, data)
	}
}

// enqueueLocked never blocks. A full queue disconnects the session rather
// than dropping a frame and delivering later ones out of order.
func (h *Hub) enqueueLocked(client *Client, data []byte) {
	if client.overflowed.Load() {
		return
	}
	select {
	case client.send <- data:
	default:
		// Later frames must not slip in behind the refused one while the
		// disconnect is pending.
		if client.overflowed.CompareAndSwap(false, true) {
			log.Printf("WARN [websocket.enqueue] queue full for session %s, disconnecting", client.session.ID)
			go h.Unregister(client)
		}
	}
}

func (h *Hub) reapIdle(now time.Time) {
	h.mu.RLock()
	idle := lo.Filter(lo.Values(h.clients), func(client *Client, _ int) bool {
		return client.conn == nil && client.idleSince(now) > h.heartbeat
	})
	h.mu.RUnlock()

	for _, client := range idle {
		log.Printf("INFO [websocket.reapIdle] poll session %s idle, deregistering", client.session.ID)
		h.Unregister(client)
	}
}

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type PresenceEvent string

const (
	PresenceConnected    PresenceEvent = "connected"
	PresenceDisconnected PresenceEvent = "disconnected"
)

// PresencePublisher broadcasts presence transitions. Publish must not block.
type PresencePublisher interface {
	PublishPresence(event PresenceEvent, username string)
}

// PresenceTracker counts active sessions per username. A user is online while
// the count is positive; only the 0->1 and 1->0 transitions are broadcast.
type PresenceTracker struct {
	mu        sync.Mutex
	sessions  map[string]string // sessionID -> username
	counts    map[string]int
	publisher PresencePublisher
	active    metric.Int64UpDownCounter
}

func NewPresenceTracker(publisher PresencePublisher) *PresenceTracker {
	active, _ := otel.Meter("github.com/dom/league-chat/internal/websocket").
		Int64UpDownCounter("chat_sessions_active", metric.WithDescription("Registered realtime sessions"))

	return &PresenceTracker{
		sessions:  make(map[string]string),
		counts:    make(map[string]int),
		publisher: publisher,
		active:    active,
	}
}

// Register adds a session. Registering a known session id is a no-op.
func (p *PresenceTracker) Register(sessionID, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[sessionID]; ok {
		return
	}
	p.sessions[sessionID] = username
	p.counts[username]++
	p.active.Add(context.Background(), 1)

	// Published under mu so transitions reach subscribers in the order they happened
	if p.counts[username] == 1 {
		p.publisher.PublishPresence(PresenceConnected, username)
	}
}

// Deregister removes a session. Unknown or already removed ids are ignored.
func (p *PresenceTracker) Deregister(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	username, ok := p.sessions[sessionID]
	if !ok {
		return
	}
	delete(p.sessions, sessionID)
	p.counts[username]--
	p.active.Add(context.Background(), -1)

	if p.counts[username] <= 0 {
		delete(p.counts, username)
		p.publisher.PublishPresence(PresenceDisconnected, username)
	}
}

func (p *PresenceTracker) IsOnline(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[username] > 0
}

func (p *PresenceTracker) SessionCount(username string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[username]
}

// OnlineUsers returns the online usernames sorted.
func (p *PresenceTracker) OnlineUsers() []string {
	p.mu.Lock()
	users := lo.Keys(p.counts)
	p.mu.Unlock()

	sort.Strings(users)
	return users
}

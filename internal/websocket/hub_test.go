package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	inputs []service.SendInput
	err    error
}

func (s *stubSender) Send(_ context.Context, input service.SendInput) (*domain.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inputs = append(s.inputs, input)
	return &domain.Message{
		ID:                uuid.New(),
		SenderUsername:    input.Sender,
		RecipientUsername: input.Recipient,
		Content:           input.Content,
		Timestamp:         time.Now().UnixMilli(),
	}, nil
}

func newTestHub(t *testing.T, queueSize int) *Hub {
	t.Helper()
	hub := NewHub(time.Minute, queueSize)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func newPollSession(t *testing.T, hub *Hub, username string, sender MessageSender) *Client {
	t.Helper()
	client := NewPollClient(hub, &domain.Session{
		ID:          uuid.NewString(),
		Username:    username,
		ConnectedAt: time.Now(),
		Transport:   domain.TransportPoll,
	}, sender)
	require.NoError(t, hub.Register(client))
	return client
}

func pollFrames(t *testing.T, client *Client) []*Message {
	t.Helper()
	raw, err := client.Poll(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)

	frames := make([]*Message, 0, len(raw))
	for _, data := range raw {
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		frames = append(frames, &msg)
	}
	return frames
}

func framesOfType(frames []*Message, msgType MessageType) []*Message {
	var out []*Message
	for _, f := range frames {
		if f.Type == msgType {
			out = append(out, f)
		}
	}
	return out
}

func TestHub_RegisterSendsConnectedAndPresence(t *testing.T) {
	hub := newTestHub(t, 16)

	alice := newPollSession(t, hub, "alice", nil)
	frames := pollFrames(t, alice)

	require.Len(t, frames, 2)
	assert.Equal(t, MessageTypePresence, frames[0].Type)
	assert.Equal(t, DestinationPresence, frames[0].Destination)

	assert.Equal(t, MessageTypeConnected, frames[1].Type)
	var connected ConnectedPayload
	require.NoError(t, json.Unmarshal(frames[1].Payload, &connected))
	assert.Equal(t, alice.Session().ID, connected.SessionID)
	assert.Equal(t, "alice", connected.Username)

	online, err := hub.IsOnline(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, online)
}

func TestHub_PresenceBroadcastOncePerTransition(t *testing.T) {
	hub := newTestHub(t, 16)

	watcher := newPollSession(t, hub, "watcher", nil)
	pollFrames(t, watcher)

	bob1 := newPollSession(t, hub, "bob", nil)
	bob2 := newPollSession(t, hub, "bob", nil)
	hub.Unregister(bob1)
	hub.Unregister(bob1)
	hub.Unregister(bob2)

	presence := framesOfType(pollFrames(t, watcher), MessageTypePresence)
	require.Len(t, presence, 2)

	var first, second PresencePayload
	require.NoError(t, json.Unmarshal(presence[0].Payload, &first))
	require.NoError(t, json.Unmarshal(presence[1].Payload, &second))
	assert.Equal(t, PresencePayload{Event: PresenceConnected, Username: "bob"}, first)
	assert.Equal(t, PresencePayload{Event: PresenceDisconnected, Username: "bob"}, second)
}

func TestHub_DeliverToEverySessionInOrder(t *testing.T) {
	hub := newTestHub(t, 16)

	bob1 := newPollSession(t, hub, "bob", nil)
	bob2 := newPollSession(t, hub, "bob", nil)
	pollFrames(t, bob1)
	pollFrames(t, bob2)

	for _, content := range []string{"1", "2"} {
		hub.DeliverToUser("bob", &domain.Message{
			ID:                uuid.New(),
			SenderUsername:    "alice",
			RecipientUsername: "bob",
			Content:           content,
		})
	}

	for _, client := range []*Client{bob1, bob2} {
		chats := framesOfType(pollFrames(t, client), MessageTypeChatMessage)
		require.Len(t, chats, 2)

		var got []string
		for _, f := range chats {
			assert.Equal(t, DestinationPrivate, f.Destination)
			var m domain.Message
			require.NoError(t, json.Unmarshal(f.Payload, &m))
			got = append(got, m.Content)
		}
		assert.Equal(t, []string{"1", "2"}, got)
	}
}

func TestHub_FullQueueDisconnects(t *testing.T) {
	hub := newTestHub(t, 2)

	slow := newPollSession(t, hub, "slow", nil)
	// PRESENCE and CONNECTED fill the queue.
	hub.DeliverToUser("slow", &domain.Message{ID: uuid.New(), Content: "overflow"})

	require.Eventually(t, slow.IsClosed, time.Second, 10*time.Millisecond)
	online, err := hub.IsOnline(context.Background(), "slow")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestHub_OverflowKeepsDeliveredFramesInOrder(t *testing.T) {
	hub := newTestHub(t, 3)

	slow := newPollSession(t, hub, "slow", nil)
	deliver := func(content string) {
		hub.DeliverToUser("slow", &domain.Message{ID: uuid.New(), Content: content})
	}

	// PRESENCE, CONNECTED and "1" fill the queue
	deliver("1")

	// Hold the disconnect back so the queue drains before it runs
	slow.lifecycle.Lock()
	deliver("2")
	<-slow.send
	deliver("3")
	slow.lifecycle.Unlock()

	require.Eventually(t, slow.IsClosed, time.Second, 10*time.Millisecond)

	var contents []string
	for data := range slow.send {
		var frame Message
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame.Type != MessageTypeChatMessage {
			continue
		}
		var message domain.Message
		require.NoError(t, json.Unmarshal(frame.Payload, &message))
		contents = append(contents, message.Content)
	}
	assert.Equal(t, []string{"1"}, contents)
}

func TestHub_UnregisteredClientCannotRegister(t *testing.T) {
	hub := newTestHub(t, 4)

	client := newPollSession(t, hub, "carol", nil)
	hub.Unregister(client)

	assert.ErrorIs(t, hub.Register(client), domain.ErrSessionClosed)
	assert.Nil(t, hub.Client(client.Session().ID))

	_, err := client.Poll(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestHub_StoppedLookupFails(t *testing.T) {
	hub := NewHub(time.Minute, 4)
	client := NewPollClient(hub, &domain.Session{ID: uuid.NewString(), Username: "dave"}, nil)
	require.NoError(t, hub.Register(client))

	hub.Stop()

	_, err := hub.IsOnline(context.Background(), "dave")
	assert.ErrorIs(t, err, domain.ErrPresenceLookupFailure)
	assert.ErrorIs(t, err, ErrHubStopped)
	assert.True(t, client.IsClosed())
	assert.False(t, hub.Presence().IsOnline("dave"))
}

func TestHub_ReapsIdlePollSessions(t *testing.T) {
	hub := NewHub(40*time.Millisecond, 8)
	go hub.Run()
	t.Cleanup(hub.Stop)

	idle := newPollSession(t, hub, "erin", nil)

	require.Eventually(t, idle.IsClosed, time.Second, 10*time.Millisecond)
	assert.False(t, hub.Presence().IsOnline("erin"))
}

func TestClient_SendChatUsesSessionUsername(t *testing.T) {
	hub := newTestHub(t, 8)
	sender := &stubSender{}
	alice := newPollSession(t, hub, "alice", sender)

	msg, err := alice.SendChat(context.Background(), SendMessagePayload{
		RecipientUsername: "bob",
		Content:           "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.SenderUsername)
	require.Len(t, sender.inputs, 1)
	assert.Equal(t, service.SendInput{Sender: "alice", Recipient: "bob", Content: "hi"}, sender.inputs[0])
}

func TestClient_HandleMessageErrors(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		sendErr  error
		wantCode string
		wantType MessageType
	}{
		{
			name:     "unknown type",
			msg:      &Message{Type: "JOIN_ROOM", Payload: json.RawMessage(`{}`)},
			wantType: MessageTypeError,
			wantCode: "INVALID_MESSAGE",
		},
		{
			name:     "wrong destination",
			msg:      &Message{Type: MessageTypeSendMessage, Destination: "/app/other", Payload: json.RawMessage(`{}`)},
			wantType: MessageTypeError,
			wantCode: "INVALID_MESSAGE",
		},
		{
			name:     "router rejects",
			msg:      &Message{Type: MessageTypeSendMessage, Destination: DestinationSend, Payload: json.RawMessage(`{"recipientUsername":"bob","content":"  "}`)},
			sendErr:  domain.ErrEmptyContent,
			wantType: MessageTypeError,
			wantCode: "EMPTY_CONTENT",
		},
		{
			name:     "ack",
			msg:      &Message{Type: MessageTypeSendMessage, Destination: DestinationSend, Payload: json.RawMessage(`{"recipientUsername":"bob","content":"hey"}`)},
			wantType: MessageTypeMessageAck,
		},
		{
			name:     "client sender and timestamp of any shape are ignored",
			msg:      &Message{Type: MessageTypeSendMessage, Destination: DestinationSend, Payload: json.RawMessage(`{"recipientUsername":"bob","content":"hey","senderUsername":{"id":7},"timestamp":"yesterday"}`)},
			wantType: MessageTypeMessageAck,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newTestHub(t, 8)
			client := newPollSession(t, hub, "alice", &stubSender{err: tt.sendErr})
			pollFrames(t, client)

			client.handleMessage(context.Background(), tt.msg)

			frames := pollFrames(t, client)
			require.Len(t, frames, 1)
			assert.Equal(t, tt.wantType, frames[0].Type)
			if tt.wantCode != "" {
				var payload ErrorPayload
				require.NoError(t, json.Unmarshal(frames[0].Payload, &payload))
				assert.Equal(t, tt.wantCode, payload.Code)
			}
		})
	}
}

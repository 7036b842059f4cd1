package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dom/league-chat/internal/api/handlers"
	"github.com/dom/league-chat/internal/testutil"
	"github.com/dom/league-chat/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTimeout = 5 * time.Second

func getHistory(t *testing.T, ts *testutil.TestServer, token, peer string) []handlers.MessageResponse {
	t.Helper()

	resp := ts.Do(t, http.MethodGet, "/history/"+peer, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []handlers.MessageResponse
	testutil.AssertJSONResponse(t, resp, &messages)
	return messages
}

func contents(messages []handlers.MessageResponse) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func TestWebSocket_HandshakeRejected(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		name     string
		header   func(t *testing.T) http.Header
		wantCode string
	}{
		{
			name:     "no credential",
			header:   func(t *testing.T) http.Header { return http.Header{} },
			wantCode: "CREDENTIAL_REQUIRED",
		},
		{
			name: "not a bearer header",
			header: func(t *testing.T) http.Header {
				return http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}}
			},
			wantCode: "MALFORMED_CREDENTIAL",
		},
		{
			name: "expired",
			header: func(t *testing.T) http.Header {
				token := testutil.NewTokenBuilder(ts.Tokens).WithUsername("alice").ExpiredAt(time.Now().Add(-time.Minute)).Build(t)
				return http.Header{"Authorization": {"Bearer " + token}}
			},
			wantCode: "EXPIRED",
		},
		{
			name: "unknown signing key",
			header: func(t *testing.T) http.Header {
				token := testutil.NewTokenBuilder(ts.Tokens).WithUsername("alice").SignedWith(testutil.NewForeignKey(t)).Build(t)
				return http.Header{"Authorization": {"Bearer " + token}}
			},
			wantCode: "INVALID_SIGNATURE",
		},
		{
			name: "missing subject",
			header: func(t *testing.T) http.Header {
				token := testutil.NewTokenBuilder(ts.Tokens).WithUsername("alice").WithoutSubject().Build(t)
				return http.Header{"Authorization": {"Bearer " + token}}
			},
			wantCode: "MISSING_SUBJECT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := testutil.DialWS(ts.WebSocketURL(), tt.header(t))
			if conn != nil {
				conn.Close()
			}
			require.ErrorIs(t, err, gorillaWS.ErrBadHandshake)
			require.NotNil(t, resp)
			testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, tt.wantCode)

			assert.Empty(t, ts.Hub.Presence().OnlineUsers())
		})
	}
}

func TestWebSocket_UsernameHeldByAnotherIdentity(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "alice"))
	alice.ExpectConnected(defaultTimeout)

	impostor := testutil.NewTokenBuilder(ts.Tokens).WithSubject("someone-else").WithUsername("alice").Build(t)
	conn, resp, err := testutil.DialWS(ts.WebSocketURL(), http.Header{"Authorization": {"Bearer " + impostor}})
	if conn != nil {
		conn.Close()
	}
	require.ErrorIs(t, err, gorillaWS.ErrBadHandshake)
	testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, "UNRESOLVED_IDENTITY")

	assert.Equal(t, 1, ts.Hub.Presence().SessionCount("alice"))

	history := ts.Do(t, http.MethodGet, "/history/bob", impostor, nil)
	testutil.AssertErrorCode(t, history, http.StatusUnauthorized, "UNRESOLVED_IDENTITY")
}

func TestWebSocket_TokenQueryParameter(t *testing.T) {
	ts := testutil.NewTestServer(t)

	conn, _, err := testutil.DialWS(ts.WebSocketURL()+"?token="+ts.Tokens.Token(t, "alice"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg websocket.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(defaultTimeout)))
	for msg.Type != websocket.MessageTypeConnected {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &msg))
	}

	var connected websocket.ConnectedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &connected))
	assert.Equal(t, "alice", connected.Username)
	assert.NotEmpty(t, connected.SessionID)
}

func TestWebSocket_RoundTrip(t *testing.T) {
	ts := testutil.NewTestServer(t)
	aliceToken := ts.Tokens.Token(t, "alice")
	bobToken := ts.Tokens.Token(t, "bob")

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), aliceToken)
	alice.ExpectConnected(defaultTimeout)
	bob := testutil.NewWSClient(t, ts.WebSocketURL(), bobToken)
	bob.ExpectConnected(defaultTimeout)

	alice.SendChat("bob", "hi")

	received := bob.ExpectChat(defaultTimeout)
	assert.Equal(t, "alice", received.SenderUsername)
	assert.Equal(t, "bob", received.RecipientUsername)
	assert.Equal(t, "hi", received.Content)
	assert.NotZero(t, received.Timestamp)

	ack := alice.ExpectAck(defaultTimeout)
	assert.Equal(t, received.ID, ack.ID)

	history := getHistory(t, ts, aliceToken, "bob")
	require.Len(t, history, 1)
	assert.Equal(t, received.ID.String(), history[0].ID)
	assert.Equal(t, "hi", history[0].Content)
}

func TestWebSocket_OrderingPreserved(t *testing.T) {
	ts := testutil.NewTestServer(t)
	aliceToken := ts.Tokens.Token(t, "alice")

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), aliceToken)
	alice.ExpectConnected(defaultTimeout)
	bob := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "bob"))
	bob.ExpectConnected(defaultTimeout)

	alice.SendChat("bob", "1")
	alice.SendChat("bob", "2")

	assert.Equal(t, "1", bob.ExpectChat(defaultTimeout).Content)
	assert.Equal(t, "2", bob.ExpectChat(defaultTimeout).Content)

	alice.ExpectAck(defaultTimeout)
	alice.ExpectAck(defaultTimeout)
	assert.Equal(t, []string{"1", "2"}, contents(getHistory(t, ts, aliceToken, "bob")))
}

func TestWebSocket_OfflineRecipient(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "alice"))
	alice.ExpectConnected(defaultTimeout)

	alice.SendChat("carol", "test")
	ack := alice.ExpectAck(defaultTimeout)
	assert.Equal(t, "carol", ack.RecipientUsername)

	// Nothing is queued for carol; history is the only way to see it
	carolToken := ts.Tokens.Token(t, "carol")
	carol := testutil.NewWSClient(t, ts.WebSocketURL(), carolToken)
	carol.ExpectConnected(defaultTimeout)
	carol.ExpectNoMessageOfType(websocket.MessageTypeChatMessage, 200*time.Millisecond)

	history := getHistory(t, ts, carolToken, "alice")
	require.Len(t, history, 1)
	assert.Equal(t, "test", history[0].Content)
	assert.Equal(t, "alice", history[0].SenderUsername)
}

func TestWebSocket_EveryRecipientSessionReceives(t *testing.T) {
	ts := testutil.NewTestServer(t)
	bobToken := ts.Tokens.Token(t, "bob")

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "alice"))
	alice.ExpectConnected(defaultTimeout)
	phone := testutil.NewWSClient(t, ts.WebSocketURL(), bobToken)
	phone.ExpectConnected(defaultTimeout)
	laptop := testutil.NewWSClient(t, ts.WebSocketURL(), bobToken)
	laptop.ExpectConnected(defaultTimeout)

	alice.SendChat("bob", "both")

	assert.Equal(t, "both", phone.ExpectChat(defaultTimeout).Content)
	assert.Equal(t, "both", laptop.ExpectChat(defaultTimeout).Content)
	assert.Equal(t, 2, ts.Hub.Presence().SessionCount("bob"))
}

func TestWebSocket_SenderIsBoundToSession(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "alice"))
	alice.ExpectConnected(defaultTimeout)
	bob := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "bob"))
	bob.ExpectConnected(defaultTimeout)

	msg, err := websocket.NewMessage(websocket.MessageTypeSendMessage, map[string]interface{}{
		"recipientUsername": "bob",
		"content":           "spoofed?",
		"senderUsername":    "mallory",
		"timestamp":         1,
	})
	require.NoError(t, err)
	alice.SendRaw(msg.WithDestination(websocket.DestinationSend))

	received := bob.ExpectChat(defaultTimeout)
	assert.Equal(t, "alice", received.SenderUsername)
	assert.NotEqual(t, int64(1), received.Timestamp)
}

func TestWebSocket_SendRejected(t *testing.T) {
	ts := testutil.NewTestServer(t)
	aliceToken := ts.Tokens.Token(t, "alice")

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), aliceToken)
	alice.ExpectConnected(defaultTimeout)

	alice.SendChat("bob", "   ")
	alice.ExpectErrorWithCode("EMPTY_CONTENT", defaultTimeout)

	alice.SendChat("", "hello")
	alice.ExpectErrorWithCode("INVALID_MESSAGE", defaultTimeout)

	alice.SendRaw(&websocket.Message{Type: "JOIN_ROOM", Payload: json.RawMessage(`{}`)})
	alice.ExpectErrorWithCode("INVALID_MESSAGE", defaultTimeout)

	// The session survives rejected sends
	alice.SendChat("bob", "still here")
	alice.ExpectAck(defaultTimeout)

	assert.Equal(t, []string{"still here"}, contents(getHistory(t, ts, aliceToken, "bob")))
}

func TestWebSocket_PresenceBroadcasts(t *testing.T) {
	ts := testutil.NewTestServer(t)
	bobToken := ts.Tokens.Token(t, "bob")

	watcher := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "watcher"))
	watcher.ExpectConnected(defaultTimeout)

	first := testutil.NewWSClient(t, ts.WebSocketURL(), bobToken)
	first.ExpectConnected(defaultTimeout)
	watcher.ExpectPresenceOf(websocket.PresenceConnected, "bob", defaultTimeout)

	second := testutil.NewWSClient(t, ts.WebSocketURL(), bobToken)
	second.ExpectConnected(defaultTimeout)

	first.Close()
	require.Eventually(t, func() bool {
		return ts.Hub.Presence().SessionCount("bob") == 1
	}, defaultTimeout, 10*time.Millisecond)
	assert.True(t, ts.Hub.Presence().IsOnline("bob"))

	// Neither the second session nor closing the first is broadcast
	watcher.ExpectNoMessageOfType(websocket.MessageTypePresence, 200*time.Millisecond)

	second.Close()
	presence := watcher.ExpectPresence(defaultTimeout)
	assert.Equal(t, websocket.PresenceDisconnected, presence.Event)
	assert.Equal(t, "bob", presence.Username)
	assert.False(t, ts.Hub.Presence().IsOnline("bob"))
}

func TestWebSocket_ServerStopClosesSessions(t *testing.T) {
	ts := testutil.NewTestServer(t)

	alice := testutil.NewWSClient(t, ts.WebSocketURL(), ts.Tokens.Token(t, "alice"))
	alice.ExpectConnected(defaultTimeout)

	ts.Hub.Stop()
	alice.ExpectClosed(defaultTimeout)

	// Upgrades still succeed but the session is refused
	conn, _, err := testutil.DialWS(ts.WebSocketURL()+"?token="+ts.Tokens.Token(t, "bob"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	assert.True(t, gorillaWS.IsCloseError(err, gorillaWS.CloseTryAgainLater), "unexpected error: %v", err)
}

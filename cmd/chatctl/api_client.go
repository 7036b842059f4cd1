package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dom/league-chat/internal/api/handlers"
	"github.com/dom/league-chat/internal/websocket"
	ws "github.com/gorilla/websocket"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *APIClient) Me(token string) (*handlers.MeResponse, error) {
	var me handlers.MeResponse
	if err := c.get(token, "/auth/me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *APIClient) History(token, peer string, page, size int) ([]handlers.MessageResponse, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}

	var messages []handlers.MessageResponse
	if err := c.get(token, "/history/"+url.PathEscape(peer)+"?"+query.Encode(), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *APIClient) Presence(token, username string) (*handlers.PresenceResponse, error) {
	var p handlers.PresenceResponse
	if err := c.get(token, "/presence/"+url.PathEscape(username), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *APIClient) OnlineUsers(token string) ([]string, error) {
	var resp handlers.OnlineUsersResponse
	if err := c.get(token, "/presence", &resp); err != nil {
		return nil, err
	}
	return resp.Online, nil
}

func (c *APIClient) get(token, path string, v interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, body)
	}

	return json.Unmarshal(body, v)
}

func apiError(status int, body []byte) error {
	var e handlers.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Code != "" {
		return fmt.Errorf("HTTP %d %s: %s", status, e.Code, e.Message)
	}
	return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
}

// Conn is a websocket session to the server
type Conn struct {
	conn *ws.Conn
	mu   sync.Mutex
	err  error
}

// Dial opens a websocket session authenticated by the Authorization header
func Dial(ctx context.Context, baseURL, token string) (*Conn, error) {
	wsURL := strings.TrimRight(baseURL, "/") + "/api/v1/ws"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := ws.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			return nil, apiError(resp.StatusCode, body)
		}
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

func (c *Conn) SendChat(recipient, content string) error {
	msg, err := websocket.NewMessage(websocket.MessageTypeSendMessage, websocket.SendMessagePayload{
		RecipientUsername: recipient,
		Content:           content,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg.WithDestination(websocket.DestinationSend))
}

// Frames yields server frames until the connection ends or ctx is done.
func (c *Conn) Frames(ctx context.Context) <-chan *websocket.Message {
	frames := make(chan *websocket.Message)

	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	go func() {
		defer close(frames)
		for {
			var msg websocket.Message
			if err := c.conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil && !ws.IsCloseError(err, ws.CloseNormalClosure) {
					c.mu.Lock()
					c.err = err
					c.mu.Unlock()
				}
				return
			}
			select {
			case frames <- &msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames
}

// Err returns the error that ended Frames, if any
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	return c.conn.Close()
}

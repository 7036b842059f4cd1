package handlers

import (
	"log"
	"net/http"

	"github.com/dom/league-chat/internal/api/middleware"
	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/service"
	"github.com/dom/league-chat/internal/websocket"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type WebSocketHandler struct {
	hub     *websocket.Hub
	gateway *service.ConnectionGateway
	sender  websocket.MessageSender
}

func NewWebSocketHandler(hub *websocket.Hub, gateway *service.ConnectionGateway, sender websocket.MessageSender) *WebSocketHandler {
	return &WebSocketHandler{
		hub:     hub,
		gateway: gateway,
		sender:  sender,
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a websocket handshake
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			authorization = "Bearer " + token
		}
	}

	admission, err := h.gateway.Admit(r.Context(), authorization, domain.TransportWebSocket)
	if err != nil {
		middleware.WriteRejection(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR [handlers.WebSocket] upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, admission.Session, h.sender)
	if err := h.hub.Register(client); err != nil {
		log.Printf("ERROR [handlers.WebSocket] register session %s: %v", admission.Session.ID, err)
		conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseTryAgainLater, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

package api

import (
	"net/http"

	"github.com/dom/league-chat/internal/api/handlers"
	"github.com/dom/league-chat/internal/api/middleware"
	"github.com/dom/league-chat/internal/config"
	"github.com/dom/league-chat/internal/service"
	"github.com/dom/league-chat/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Identity)
	historyHandler := handlers.NewHistoryHandler(services.History, cfg)
	presenceHandler := handlers.NewPresenceHandler(hub.Presence())
	pollHandler := handlers.NewPollHandler(hub, services.Gateway, services.Message)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Gateway, services.Message)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint authenticates its own handshake
		r.Get("/ws", wsHandler.Handle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Gateway))

			r.Get("/auth/me", authHandler.Me)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)

				r.Get("/history/{peerUsername}", historyHandler.GetConversation)

				r.Route("/presence", func(r chi.Router) {
					r.Get("/", presenceHandler.List)
					r.Get("/{username}", presenceHandler.Get)
				})

				r.Route("/poll/sessions", func(r chi.Router) {
					r.Post("/", pollHandler.Create)
					r.Get("/{sessionId}/events", pollHandler.Events)
					r.Post("/{sessionId}/messages", pollHandler.Send)
					r.Delete("/{sessionId}", pollHandler.Close)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "chat-api")
}

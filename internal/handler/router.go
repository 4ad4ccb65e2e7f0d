package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/chat-starter/internal/handler/chat"
	"github.com/zhouzirui/chat-starter/internal/handler/stream"
	"github.com/zhouzirui/chat-starter/internal/metrics"
	middlewarePkg "github.com/zhouzirui/chat-starter/internal/middleware"
	"github.com/zhouzirui/chat-starter/pkg/utils"
)

// Session is everything the HTTP surface needs from a chat session.
type Session interface {
	chat.Session
	stream.Source
}

// NewRouter wires HTTP routes to the running chat session. With a nil m
// nothing is counted and /metrics is not mounted.
func NewRouter(session Session, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(m.CountRequests)

	chatHandler := chat.New(session)
	streamHandler := stream.New(session)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatHandler.RegisterRoutes(api)

		api.Method(http.MethodGet, "/stream", streamHandler)
	})

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return r
}

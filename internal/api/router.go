package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router assembles the chi router over the server's handlers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(withRole(s.tokens))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tools", s.handleListTools)
		r.Post("/chat", s.handleChat)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleClearSession)
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/", s.handleGetMetrics)
			r.Delete("/", s.handleResetMetrics)
		})

		r.Get("/permissions/{role}", s.handlePermissions)

		r.Route("/mcp", func(r chi.Router) {
			r.Get("/tools", s.handleFederatedTools)
			r.Route("/servers", func(r chi.Router) {
				r.Get("/", s.handleListServers)
				r.Post("/", s.handleAddServer)
				r.Get("/{id}", s.handleGetServer)
				r.Patch("/{id}", s.handleUpdateServer)
				r.Delete("/{id}", s.handleRemoveServer)
				r.Post("/{id}/reconnect", s.handleReconnectServer)
			})
		})
	})

	return r
}

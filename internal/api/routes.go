package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// routes wires the control surface. The wildcard control route sits last;
// chi resolves the static paths first.
func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// The dashboard is served from wherever the operator parks it.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/tasks", s.handleTasks)
	r.Get("/queues", s.handleQueues)
	r.Get("/events", s.handleEvents)
	r.Get("/{action}/{task_type}/{name}", s.handleControl)

	return r
}

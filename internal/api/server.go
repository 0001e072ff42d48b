// Package api is the operator control surface: task start/stop routes, the
// task and queue listings the dashboard renders, and the live event stream
// it tails.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/chartermatch/internal/livelog"
	"github.com/ignite/chartermatch/internal/pipeline"
)

// Server wraps the HTTP control surface around the running pipeline.
type Server struct {
	handler http.Handler
	server  *http.Server

	// baseCtx is the process-lifetime context tasks are started under.
	// Request contexts die with their request; tasks must not.
	baseCtx context.Context

	sup    *pipeline.Supervisor
	queues *pipeline.Queues
	hub    *livelog.Hub
	log    *livelog.Log
}

// NewServer builds the control surface. ctx bounds the lifetime of tasks
// started through it.
func NewServer(ctx context.Context, sup *pipeline.Supervisor, queues *pipeline.Queues, hub *livelog.Hub, log *livelog.Log) *Server {
	s := &Server{
		baseCtx: ctx,
		sup:     sup,
		queues:  queues,
		hub:     hub,
		log:     log,
	}
	s.handler = s.routes()
	return s
}

// ListenAndServe starts the HTTP server. No write timeout: /events holds its
// connection open for as long as the dashboard listens.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

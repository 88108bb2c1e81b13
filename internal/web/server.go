// Package web is the HTTP surface: live MJPEG stream, JSON state and
// event endpoints, a websocket push channel and the session report.
package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"poolmind/internal/auth"
	"poolmind/internal/hub"
	"poolmind/internal/middleware"
	"poolmind/internal/store"
)

// Controls are the operator actions forwarded to the pipeline.
type Controls interface {
	ResetGame()
	EndTurn()
}

// Config holds the server parameters.
type Config struct {
	Addr      string
	StreamFPS int
}

// Server serves the dashboard and API.
type Server struct {
	cfg      Config
	hub      *hub.Hub
	ws       *WSHub
	controls Controls
	store    *store.Store // nil disables the report endpoints
	authn    *auth.Authenticator
	started  time.Time
}

// NewServer wires the HTTP surface together.
func NewServer(cfg Config, h *hub.Hub, controls Controls, st *store.Store, authn *auth.Authenticator) *Server {
	if cfg.StreamFPS <= 0 {
		cfg.StreamFPS = 15
	}
	return &Server{
		cfg:      cfg,
		hub:      h,
		ws:       NewWSHub(),
		controls: controls,
		store:    st,
		authn:    authn,
		started:  time.Now(),
	}
}

// WSHub exposes the websocket hub so the pipeline can push state.
func (s *Server) WSHub() *WSHub { return s.ws }

// SetControls binds the game control sink after construction. The server
// and the pipeline reference each other, so one side has to bind late.
func (s *Server) SetControls(c Controls) { s.controls = c }

// Routes builds the request multiplexer.
func (s *Server) Routes() *http.ServeMux {
	requireAuth := middleware.AuthMiddleware(s.authn)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream.mjpg", s.handleMJPEG)
	mux.HandleFunc("/frame.jpg", s.handleFrame)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.Handle("/api/game/reset", requireAuth(http.HandlerFunc(s.handleGameReset)))
	mux.Handle("/api/game/endturn", requireAuth(http.HandlerFunc(s.handleEndTurn)))
	if s.store != nil {
		mux.HandleFunc("/api/report", s.handleReport)
		mux.HandleFunc("/api/report/sessions", s.handleReportSessions)
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("[Web] HTTP server listening on %q", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Printf("[Web] Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

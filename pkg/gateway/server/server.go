package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vango-go/vai-sentinel/pkg/gateway/config"
	"github.com/vango-go/vai-sentinel/pkg/gateway/handlers"
	"github.com/vango-go/vai-sentinel/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/gemini"
	"github.com/vango-go/vai-sentinel/pkg/gateway/live/sessions"
	"github.com/vango-go/vai-sentinel/pkg/gateway/metrics"
	"github.com/vango-go/vai-sentinel/pkg/gateway/mw"
	"github.com/vango-go/vai-sentinel/pkg/gateway/store"
)

// Deps are the long-lived collaborators shared by every request. Nil fields
// fall back to inert defaults, except Connector which /v1/live requires.
type Deps struct {
	Connector    gemini.Connector
	Store        store.Store
	Metrics      *metrics.Metrics
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	deps   Deps
	router chi.Router
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Store == nil {
		deps.Store = store.Nop{}
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = &lifecycle.Lifecycle{}
	}
	if deps.LiveSessions == nil {
		deps.LiveSessions = sessions.NewTracker(cfg.MaxLiveSessions)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(mw.RequestID, mw.AccessLog(s.logger), mw.Recover(s.logger))
	r.NotFound(handlers.NotFoundHandler{}.ServeHTTP)
	r.MethodNotAllowed(handlers.MethodNotAllowedHandler{}.ServeHTTP)

	r.Method(http.MethodGet, "/healthz", handlers.HealthHandler{})
	r.Method(http.MethodGet, "/readyz", handlers.ReadyHandler{
		Config:       s.cfg,
		Lifecycle:    s.deps.Lifecycle,
		LiveSessions: s.deps.LiveSessions,
	})
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.CORS(s.cfg))

		// The live socket authenticates in its hello frame.
		r.Method(http.MethodGet, "/live", handlers.LiveHandler{
			Config:       s.cfg,
			Connector:    s.deps.Connector,
			Recorder:     s.deps.Store,
			Metrics:      s.deps.Metrics,
			Logger:       s.logger,
			Lifecycle:    s.deps.Lifecycle,
			LiveSessions: s.deps.LiveSessions,
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(s.cfg))
			r.Method(http.MethodGet, "/sentinel", handlers.SentinelHandler{})
			r.Method(http.MethodGet, "/sessions/{sessionID}/interventions", handlers.InterventionsHandler{Store: s.deps.Store})
		})
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Lifecycle returns the drain state shared with the handlers.
func (s *Server) Lifecycle() *lifecycle.Lifecycle {
	return s.deps.Lifecycle
}

// LiveSessions returns the tracker of active live relays.
func (s *Server) LiveSessions() *sessions.Tracker {
	return s.deps.LiveSessions
}

// Package api serves the entity states over HTTP and accepts switch commands.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/larsks/omada-poe/internal/httpserver"
	"github.com/larsks/omada-poe/internal/hub"
)

// Hub is the part of the entity hub the API needs.
type Hub interface {
	States() []hub.State
	GetState(entityID string) (hub.State, bool)
	CallService(ctx context.Context, domain, service, entityID string) error
}

// Refresher polls the controller on demand.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

type Config struct {
	ListenAddress  string   `mapstructure:"listen-address"`
	ListenPort     int      `mapstructure:"listen-port"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

func (c Config) GetListenAddress() string { return c.ListenAddress }
func (c Config) GetListenPort() int       { return c.ListenPort }

// Server represents the API server.
type Server struct {
	config    Config
	hub       Hub
	refresher Refresher
	router    *chi.Mux
}

// NewServer creates an API server. refresher may be nil, in which case
// POST /refresh is not routed.
func NewServer(cfg Config, h Hub, refresher Refresher) (*Server, error) {
	if h == nil {
		return nil, ErrNoHub
	}
	return newServer(cfg, h, refresher, true), nil
}

func newServer(cfg Config, h Hub, refresher Refresher, production bool) *Server {
	s := &Server{
		config:    cfg,
		hub:       h,
		refresher: refresher,
		router:    chi.NewRouter(),
	}

	if production {
		s.router.Use(middleware.Logger)
		s.router.Use(middleware.Recoverer)
		s.router.Use(middleware.Timeout(60 * time.Second))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/entities", s.listEntitiesHandler)
	s.router.Route("/entities/{entity_id}", func(r chi.Router) {
		r.Use(s.validateEntity)
		r.Get("/", s.entityStatusHandler)
		r.With(s.validateJSONRequest, s.validateStateRequest).Post("/", s.entityCommandHandler)
	})
	if refresher != nil {
		s.router.Post("/refresh", s.refreshHandler)
	}

	return s
}

// Router returns the HTTP handler of the server.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := httpserver.StartFromConfig(ctx, s.config, s.router); err != nil {
		return fmt.Errorf("%w: %v", ErrServerShutdownFailed, err)
	}
	return nil
}

package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gametrack/pkg/cachestore"
	"gametrack/pkg/catalog"
	"gametrack/pkg/config"
	"gametrack/pkg/igdb"
	"gametrack/pkg/logging"
)

// SyncControl is the slice of the scheduler the HTTP surface drives.
type SyncControl interface {
	TriggerNow() error
	RequestStop() error
	Status() catalog.SyncState
}

// DetailStore looks up a single item in the relational fallback tier.
// A nil store disables the tier and detail lookups go straight upstream.
type DetailStore interface {
	GetItem(ctx context.Context, id int64) (*catalog.Item, error)
}

// RemoteAPI is the slice of the upstream client the handlers use directly:
// per-item detail fallback and the filter option lists.
type RemoteAPI interface {
	GameByID(ctx context.Context, id int64) (*igdb.Game, error)
	Filters(ctx context.Context) (*igdb.FilterOptions, error)
}

var _ RemoteAPI = (*igdb.Client)(nil)

// Server is the HTTP control and query surface over the catalog.
type Server struct {
	config    *config.ServerConfig
	logger    *logging.Logger
	query     *catalog.Query
	snapshots *catalog.Snapshots
	states    *catalog.StateStore
	control   SyncControl
	details   DetailStore
	remote    RemoteAPI
	cache     cachestore.Store

	httpServer *http.Server
}

// New creates the HTTP server. details may be nil when no database is
// configured; remote may be nil in tests.
func New(cfg *config.ServerConfig, logger *logging.Logger, query *catalog.Query, snapshots *catalog.Snapshots, states *catalog.StateStore, control SyncControl, details DetailStore, remote RemoteAPI, cache cachestore.Store) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		query:     query,
		snapshots: snapshots,
		states:    states,
		control:   control,
		details:   details,
		remote:    remote,
		cache:     cache,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/games", s.handleListGames)
		r.Get("/games/{id}", s.handleGetGame)
		r.Get("/filters", s.handleFilters)
		r.Get("/stats", s.handleStats)

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.handleSyncStatus)
			r.Post("/start", s.handleSyncStart)
			r.Post("/stop", s.handleSyncStop)
			r.Post("/clear", s.handleSyncClear)
		})
	})

	return r
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.WithHTTP().WithField("addr", s.config.Addr).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.WithHTTP().Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// isAdmin reports whether the request carries the configured admin bearer
// token. With no token configured, administrative access is disabled.
func (s *Server) isAdmin(r *http.Request) bool {
	if s.config.AdminToken == "" {
		return false
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) == 1
}

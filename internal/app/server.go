package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/promptroute/promptroute"
	"github.com/promptroute/promptroute/internal/logging"
	"github.com/promptroute/promptroute/internal/metrics"
	"github.com/promptroute/promptroute/internal/stats"
	"github.com/promptroute/promptroute/internal/store"
	"github.com/promptroute/promptroute/internal/tracing"
	"github.com/promptroute/promptroute/types"
)

type Server struct {
	cfg Config

	r *chi.Mux

	mu      sync.RWMutex
	engine  *promptroute.Engine
	store   store.Store
	stats   *stats.Collector
	metrics *metrics.Registry
	logger  *slog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	logger := logging.Setup(cfg.LogLevel)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(tracing.Middleware())
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s := &Server{
		cfg:     cfg,
		r:       r,
		stats:   stats.NewCollector(),
		metrics: metrics.New(),
		logger:  logger,
	}

	if cfg.DBDSN != "" {
		db, err := store.NewSQLite(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.store = db
		logger.Info("event store initialized", slog.String("dsn", cfg.DBDSN))
		s.seedStats()
	}

	s.engine = s.buildEngine()

	s.mountRoutes()
	return s, nil
}

// seedStats replays recent persisted events into the rolling stats
// collector so /v1/stats is not blank right after a restart.
func (s *Server) seedStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := s.store.ListEvents(ctx, 1000, 0)
	if err != nil {
		s.logger.Warn("stats seed failed", slog.String("error", err.Error()))
		return
	}
	snapshots := make([]stats.Snapshot, len(events))
	for i, ev := range events {
		snapshots[i] = stats.FromEvent(ev)
	}
	s.stats.Seed(snapshots)
}

// buildEngine constructs the routing engine with the composite event sink.
// Called again on SIGHUP to pick up a changed config file.
func (s *Server) buildEngine() *promptroute.Engine {
	return promptroute.New(s.cfg.ConfigPath,
		promptroute.WithEnvironment(s.cfg.Environment),
		promptroute.WithLogger(s.logger),
		promptroute.WithTimeout(time.Duration(s.cfg.ProviderTimeoutSecs)*time.Second),
		promptroute.WithEnvLookup(os.Getenv),
		promptroute.WithSink(s.consumeEvent),
	)
}

// consumeEvent fans one observability event out to metrics, rolling
// stats, and the optional SQLite store.
func (s *Server) consumeEvent(ev types.ObservabilityEvent) {
	s.metrics.Observe(ev)
	s.stats.RecordEvent(ev)
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.store.InsertEvent(ctx, ev); err != nil {
			s.logger.Warn("event store insert failed", slog.String("error", err.Error()))
		}
	}
}

// Reload swaps in a fresh engine so the next request reloads the config
// file. In-flight requests finish on the old engine.
func (s *Server) Reload() {
	eng := s.buildEngine()
	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()
	s.logger.Info("engine rebuilt, config will reload on next request")
}

// Engine returns the current engine instance.
func (s *Server) Engine() *promptroute.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *Server) Router() http.Handler { return s.r }

func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Package worker provides the background analysis service for
// vibe-replay. Hooks POST tool-use events to it; it persists them,
// and on session completion runs the analysis pipeline and serves
// the resulting replays, insights and accumulated wisdom over HTTP.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/vibe-replay/internal/analysis"
	"github.com/thebtf/vibe-replay/internal/config"
	"github.com/thebtf/vibe-replay/internal/db"
	"github.com/thebtf/vibe-replay/internal/eventlog"
	"github.com/thebtf/vibe-replay/internal/worker/sse"
)

// Service is the vibe-replay worker: event ingestion, analysis
// scheduling and the query API.
type Service struct {
	version     string
	config      *config.Config
	store       *db.Store
	logs        *eventlog.Store
	analyzer    *analysis.Analyzer
	scheduler   *scheduler
	broadcaster *sse.Broadcaster
	router      *chi.Mux
	httpServer  *http.Server
	ctx         context.Context
	cancel      context.CancelFunc
	startTime   time.Time
	ready       atomic.Bool
}

// Options carries the collaborators New wires into a Service.
type Options struct {
	Version  string
	Config   *config.Config
	Store    *db.Store
	Logs     *eventlog.Store
	Analyzer *analysis.Analyzer
}

// New assembles a Service. The analyzer may be nil, in which case one
// is built from the configured thresholds and default phase rules.
func New(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Get()
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = analysis.New(cfg.AnalysisConfig(), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:     opts.Version,
		config:      cfg,
		store:       opts.Store,
		logs:        opts.Logs,
		analyzer:    analyzer,
		broadcaster: sse.NewBroadcaster(),
		router:      chi.NewRouter(),
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
	}
	svc.scheduler = newScheduler(svc, cfg.MaxConns)
	svc.setupRoutes()

	return svc
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/version", s.handleVersion)
		r.Get("/events", s.broadcaster.HandleSSE)

		r.Group(func(r chi.Router) {
			r.Use(s.requireReady)

			r.Post("/sessions/events", s.handleRecordEvent)
			r.Post("/sessions/{sessionID}/complete", s.handleCompleteSession)
			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{sessionID}/replay", s.handleGetReplay)
			r.Get("/sessions/{sessionID}/export", s.handleExportReplay)
			r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
			r.Get("/wisdom", s.handleWisdom)
			r.Get("/insights/search", s.handleSearchInsights)
		})
	})
}

// requireReady rejects requests until startup recovery has finished.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "service is starting up")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server and blocks until Shutdown or a listen
// error. Sessions left completed-but-unanalyzed by a previous run are
// requeued before the service reports ready.
func (s *Service) Start(port int) error {
	s.scheduler.start()

	if err := s.requeuePending(); err != nil {
		log.Warn().Err(err).Msg("Failed to requeue pending sessions")
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.ready.Store(true)
	log.Info().Int("port", port).Str("version", s.version).Msg("Worker listening")

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and drains the scheduler.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.scheduler.stop(ctx)

	log.Info().Dur("uptime", time.Since(s.startTime)).Msg("Worker stopped")
	return err
}

func (s *Service) requeuePending() error {
	pending, err := s.store.PendingSessions(s.ctx)
	if err != nil {
		return err
	}
	for _, session := range pending {
		s.scheduler.enqueue(job{sessionID: session.SessionID, project: session.Project})
	}
	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("Requeued sessions pending analysis")
	}
	return nil
}

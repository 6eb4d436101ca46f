// Package server provides the HTTP server and routing for magicfactory.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/config"
	"github.com/aristath/magicfactory/internal/di"
	distillationhandlers "github.com/aristath/magicfactory/internal/modules/distillation/handlers"
	overheadhandlers "github.com/aristath/magicfactory/internal/modules/overhead/handlers"
	scalinghandlers "github.com/aristath/magicfactory/internal/modules/scaling/handlers"
	searchhandlers "github.com/aristath/magicfactory/internal/modules/search/handlers"
	"github.com/aristath/magicfactory/internal/scheduler"
)

// Version is reported by /health.
const Version = config.Version

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Jobs      *di.JobInstances
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(SystemDeps{
		DataDir:   cfg.Config.DataDir,
		Databases: cfg.Container.Databases(),
		Scheduler: cfg.Container.Scheduler,
		Searches:  cfg.Container.Runner,
		Archive:   cfg.Container.Archive,
		Backups:   cfg.Container.Backups,
		Estimator: cfg.Container.Estimator,
		Jobs:      jobList(cfg.Jobs),
	}, cfg.Log)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Left at zero: CSV downloads of large runs and the event streams outlive any fixed write deadline.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func jobList(instances *di.JobInstances) []scheduler.Job {
	if instances == nil {
		return nil
	}
	var jobs []scheduler.Job
	for _, j := range []scheduler.Job{
		instances.WALCheckpoint,
		instances.ExportResults,
		instances.Backup,
		instances.CacheMaintenance,
		instances.ScheduledSearch,
	} {
		if j != nil {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event streams hold the connection open, so they sit outside the timeout group
		eventsHandler := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", eventsHandler.ServeHTTP)
		r.Get("/events/ws", eventsHandler.ServeWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
				r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/archive", s.systemHandlers.HandleArchiveList)
				r.Get("/backups", s.systemHandlers.HandleBackupList)
			})

			distillationhandlers.NewHandler(s.container.Estimator, s.log).RegisterRoutes(r)
			overheadhandlers.NewHandler(s.container.Estimator, s.log).RegisterRoutes(r)
			searchhandlers.NewHandler(s.container.Runner, s.container.Repository, s.log).RegisterRoutes(r)
		})

		// Sweeps run many simulations inside the request
		scalinghandlers.NewHandler(s.container.ScalingService, s.log).RegisterRoutes(r)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

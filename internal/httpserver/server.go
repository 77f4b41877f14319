// Package httpserver implements the local HTTP API (spec.md §4.7): a
// loopback chi router exposing transaction query/count/fetch, config
// read/write, export, and embedded static assets, wired the way the
// teacher's internal/httpserver/server.go assembles its own router —
// middleware chain, *http.Server lifecycle, and graceful shutdown — but
// carrying this module's own routes and a collapsed error envelope.
package httpserver

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mealflow/mealflow/internal/config"
	"github.com/mealflow/mealflow/internal/credentials"
	"github.com/mealflow/mealflow/internal/fetch"
	"github.com/mealflow/mealflow/internal/metrics"
	"github.com/mealflow/mealflow/internal/store"
)

// Server wires the router, handlers, and the underlying *http.Server.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg         config.Settings
	store       *store.Handle
	credStore   *credentials.Store
	coordinator *fetch.Coordinator
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	cred atomic.Value // holds credentials.Credential
}

// New builds the HTTP server around its dependencies, resolving the
// initial credential once per Design Notes (flag > env > file, already
// reconciled into initialCred by the caller).
func New(cfg config.Settings, storeHandle *store.Handle, credStore *credentials.Store, coordinator *fetch.Coordinator, metricsCollector *metrics.Metrics, logger zerolog.Logger, initialCred credentials.Credential) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:         cfg,
			store:       storeHandle,
			credStore:   credStore,
			coordinator: coordinator,
			metrics:     metricsCollector,
			logger:      logger,
		},
		httpServer: &http.Server{
			Addr:         cfg.WebAddress,
			ReadTimeout:  cfg.ServerTimeout.Read,
			WriteTimeout: cfg.ServerTimeout.Write,
			IdleTimeout:  cfg.ServerTimeout.Idle,
			Handler:      router,
		},
	}
	s.cred.Store(initialCred)

	ConfigureRouter(router, &s.handlers)
	return s
}

// ConfigureRouter attaches mealflow's routes to an existing chi router.
func ConfigureRouter(router chi.Router, h *handlers) {
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(h.requestLogger)

	router.Get("/api/transactions", h.listTransactions)
	router.Post("/api/transactions/query", h.queryTransactions)
	router.Get("/api/transactions/count", h.countTransactions)
	router.Post("/api/transactions/fetch", h.triggerFetch)
	router.Put("/api/config/account", h.putAccount)
	router.Put("/api/config/hallticket", h.putHallticket)
	router.Get("/api/config/account-cookie", h.getAccountCookie)
	router.Get("/api/export/csv", h.exportCSV)
	router.Handle("/api/metrics", promhttp.Handler())
	router.Get("/*", h.serveStatic)
}

// ListenAndServe starts the HTTP server; it blocks until Shutdown or a
// listener error.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, bounded by cfg.ServerTimeout.ShutdownGrace
// at the caller's discretion (spec.md §5's ≤5s grace period).
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request at debug level and records it in metrics,
// modeled on the teacher's internal/logger.Middleware request-scoped
// logging shape, trimmed of request-ID generation (chi's middleware.RequestID
// already does that here).
func (h *handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.metrics.ObserveHTTPRequest(r.Method, r.URL.Path, rec.status)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

// statusRecorder captures the status code written so middleware can log
// and instrument it after the handler runs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Package api wires the HTTP surface: one handler struct per resource,
// all routed through gorilla/mux behind the token gate.
package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lsec-edu/microlearn/pkg/auth"
	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/middleware"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
	"github.com/lsec-edu/microlearn/pkg/users"
)

// MsgWelcome is the root endpoint greeting
const MsgWelcome = "Hola desde el servidor proyecto Microlearning LSEC"

// Options configures the server
type Options struct {
	DB        *sql.DB
	JWTSecret []byte
	TokenTTL  time.Duration
	Logger    *observability.Logger

	// MetricsRegistry enables the /metrics endpoint and request
	// instrumentation when set
	MetricsRegistry *prometheus.Registry
}

// Server owns the router and all resource handlers
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
	health  *observability.HealthChecker
	gate    *middleware.Gate
	db      *sql.DB
}

// NewServer builds the full route surface from its dependencies
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	var metrics *observability.Metrics
	if opts.MetricsRegistry != nil {
		metrics = observability.NewMetrics(opts.MetricsRegistry)
	}

	issuer := auth.NewTokenIssuer(opts.JWTSecret, opts.TokenTTL)
	roleStore := roles.NewStore(opts.DB)
	userStore := users.NewStore(opts.DB)
	userSvc := users.NewService(userStore, roleStore, issuer)
	gate := middleware.NewGate(issuer, userStore, roleStore, metrics)

	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
		health:  observability.NewHealthChecker(opts.DB),
		gate:    gate,
		db:      opts.DB,
	}

	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(httputil.RequestIDMiddleware)
	// Largest legal request is a capsule upload: image + gif at 9MB each
	// plus form overhead.
	s.router.Use(httputil.MaxBytesMiddleware(2*MaxMediaSize + 1<<20))
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), logger)))
		})
	})
	s.router.Use(middleware.RequestLogging(logger))
	if s.metrics != nil {
		s.router.Use(s.instrument)
	}

	s.router.HandleFunc("/", s.Root).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	NewAuthHandler(userSvc, logger, s.metrics).RegisterRoutes(s.router)
	NewUserHandler(userStore, userSvc, logger).RegisterRoutes(s.router, gate)
	NewModuleHandler(opts.DB, logger).RegisterRoutes(s.router, gate)
	NewLessonHandler(opts.DB, logger).RegisterRoutes(s.router, gate)
	NewCardHandler(opts.DB, logger).RegisterRoutes(s.router, gate)
	NewMicroHandler(opts.DB, logger).RegisterRoutes(s.router, gate)
	NewHomeHandler(opts.DB, logger).RegisterRoutes(s.router, gate)
	NewProgressHandler(opts.DB, logger).RegisterRoutes(s.router, gate)

	return s
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP makes the server usable as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Root answers the greeting used by uptime checks and the client's
// connectivity check
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	httputil.WriteMessage(w, http.StatusOK, MsgWelcome)
}

// instrument records request count and duration labeled by the route
// template, keeping metric cardinality bounded. The connection gauges
// piggyback on the same hook.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		start := time.Now()
		sw := &responseStatus{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.metrics.ObserveRequest(r.Method, path, sw.status, time.Since(start))
		s.metrics.UpdateDBStats(s.db)
	})
}

type responseStatus struct {
	http.ResponseWriter
	status int
}

func (w *responseStatus) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

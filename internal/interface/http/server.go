// Package http exposes the matching, lifecycle and reputation operations
// over a JSON API for the surrounding application.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/campus-hub/study-match/internal/app"
	"github.com/campus-hub/study-match/internal/application/command"
	"github.com/campus-hub/study-match/internal/application/query"
	"github.com/campus-hub/study-match/internal/infrastructure/metrics"
	"github.com/campus-hub/study-match/internal/interface/http/handlers"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds handler execution.
	RequestTimeout time.Duration

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// AllowedOrigins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// RateLimitPerMinute per caller on /api routes (0 = disabled).
	RateLimitPerMinute int
	RateLimitBurst     int

	// EnableMetrics mounts /metrics.
	EnableMetrics bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		RequestTimeout:     10 * time.Second,
		MaxBodyBytes:       1 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		RateLimitBurst:     30,
		EnableMetrics:      true,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Commands
	CreateMatch    *command.CreateMatchRequestHandler
	RespondToMatch *command.RespondToMatchHandler
	Schedule       *command.ScheduleSessionHandler
	CompleteMatch  *command.CompleteMatchHandler
	SubmitRating   *command.SubmitRatingHandler
	Sessions       *command.SessionHandler
	UpsertOffer    *command.UpsertOfferHandler
	RemoveOffer    *command.RemoveOfferHandler
	AwardPoints    *command.AwardActivityPointsHandler
	EmitNotice     *command.EmitNotificationHandler
	MarkRead       *command.MarkNotificationsReadHandler

	// Queries
	FindCandidates *query.FindCandidatesHandler
	CanRate        *query.CanRateHandler
	UserMatches    *query.GetUserMatchesHandler
	UserRatings    *query.GetUserRatingsHandler
	Leaderboard    *query.GetLeaderboardHandler
	Notifications  *query.GetNotificationsHandler
	ListOffers     *query.ListOffersHandler

	// Tokens verifies bearer tokens. Required.
	Tokens *handlers.TokenManager

	// ServiceKeyHashes guard the producer routes. Without any, the routes
	// reject every call unless OpenProducerRoutes is set.
	ServiceKeyHashes   []string
	OpenProducerRoutes bool

	// Health is optional; nil reports healthy.
	Health *handlers.HealthChecker

	// Metrics and Gatherer are optional.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	Logger *logger.Logger
}

// DependenciesFrom copies the operation handlers of h. Tokens, Health,
// Metrics and Logger are left for the caller.
func DependenciesFrom(h *app.Handlers) Dependencies {
	return Dependencies{
		CreateMatch:    h.CreateMatch,
		RespondToMatch: h.RespondToMatch,
		Schedule:       h.Schedule,
		CompleteMatch:  h.CompleteMatch,
		SubmitRating:   h.SubmitRating,
		Sessions:       h.Sessions,
		UpsertOffer:    h.UpsertOffer,
		RemoveOffer:    h.RemoveOffer,
		AwardPoints:    h.AwardPoints,
		EmitNotice:     h.EmitNotice,
		MarkRead:       h.MarkRead,

		FindCandidates: h.FindCandidates,
		CanRate:        h.CanRate,
		UserMatches:    h.UserMatches,
		UserRatings:    h.UserRatings,
		Leaderboard:    h.Leaderboard,
		Notifications:  h.Notifications,
		ListOffers:     h.ListOffers,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     chi.Router
	log        *logger.Logger
	limiter    *handlers.RateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	s := &Server{
		config: config,
		deps:   deps,
		log:    deps.Logger.With(logger.Component("http")),
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = handlers.NewRateLimiter(handlers.RateLimitConfig{
			PerMinute: config.RateLimitPerMinute,
			Burst:     config.RateLimitBurst,
		}, s.log)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the root handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(s.requestLogger)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(handlers.SecurityHeaders)
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(s.cors)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLive)
	if s.config.EnableMetrics && s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.deps.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
		}
		if s.config.MaxBodyBytes > 0 {
			r.Use(handlers.BodyLimit(s.config.MaxBodyBytes))
		}
		r.Use(handlers.Authenticate(s.deps.Tokens, s.log))
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Get("/candidates", s.handleFindCandidates)

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.handleUserMatches)
			r.Post("/", s.handleCreateMatch)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/respond", s.handleRespond)
				r.Post("/schedule", s.handleSchedule)
				r.Post("/complete", s.handleComplete)
				r.Post("/ratings", s.handleSubmitRating)
				r.Get("/can-rate", s.handleCanRate)
			})
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Post("/start", s.handleSessionStart)
			r.Post("/complete", s.handleSessionComplete)
			r.Post("/cancel", s.handleSessionCancel)
		})

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", s.handleListOffers)
			r.Put("/", s.handleUpsertOffer)
			r.Delete("/{id}", s.handleRemoveOffer)
		})

		r.Get("/users/{id}/ratings", s.handleUserRatings)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleNotifications)
			r.Post("/read", s.handleMarkRead)
		})

		// Producers outside this service: forum, resources, chat, reminders.
		// A nil handler leaves its route unmounted.
		r.Route("/internal", func(r chi.Router) {
			r.Use(handlers.RequireServiceKey(s.deps.ServiceKeyHashes, s.deps.OpenProducerRoutes, s.log))
			if s.deps.AwardPoints != nil {
				r.Post("/points", s.handleAwardPoints)
			}
			if s.deps.EmitNotice != nil {
				r.Post("/notifications", s.handleEmitNotification)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := s.log.WithRequestID(middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
			logger.String("ip", r.RemoteAddr),
		}
		if status >= 500 {
			reqLog.Error("http request", fields...)
			return
		}
		reqLog.Debug("http request", fields...)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("panic recovered",
					logger.Any("panic", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", middleware.GetReqID(r.Context())),
				)
				handlers.WriteError(w, http.StatusInternalServerError, "internal", "an unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

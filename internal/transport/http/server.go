package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/authgate/internal/config"
	"github.com/your-org/authgate/internal/service/routes"
	"github.com/your-org/authgate/internal/service/token"
	"github.com/your-org/authgate/pkg/httputil"
	"github.com/your-org/authgate/pkg/logger"
	"github.com/your-org/authgate/pkg/resilience/ratelimit"
	"github.com/your-org/authgate/pkg/tracing"
)

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	handler     *Handler
	gateway     *Gateway
	rateLimiter *ratelimit.Limiter
	tracing     *tracing.Provider
	cfg         config.ServerConfig
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithRateLimiter sets the rate limiter for the server.
func WithRateLimiter(limiter *ratelimit.Limiter) ServerOption {
	return func(s *Server) {
		s.rateLimiter = limiter
	}
}

// WithTracing sets the tracing provider for the server.
func WithTracing(provider *tracing.Provider) ServerOption {
	return func(s *Server) {
		s.tracing = provider
	}
}

// NewServer creates a new HTTP server with the authentication gateway
// mounted in front of every route.
func NewServer(
	cfg *config.Config,
	table *routes.Table,
	tokenService *token.Service,
	version string,
	opts ...ServerOption,
) *Server {
	handler := NewHandler(table, tokenService.Policy(), version)
	gateway := NewGateway(table, tokenService, cfg)

	server := &Server{
		handler: handler,
		gateway: gateway,
		cfg:     cfg.Server,
	}

	for _, opt := range opts {
		opt(server)
	}

	router := chi.NewRouter()

	// Middleware stack (order matters)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(logger.CorrelationIDMiddleware)

	if server.tracing != nil && server.tracing.Enabled() {
		router.Use(tracing.Middleware(server.tracing))
	}

	if server.rateLimiter != nil {
		router.Use(server.rateLimiter.Middleware())
		logger.Info("rate limiter middleware enabled")
	}

	router.Use(requestLogger)
	router.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// Authentication applies to every route. What is public is decided by
	// the route table, not by where a route is registered.
	router.Use(gateway.Handler)

	server.registerRoutes(router)

	server.httpServer = &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return server
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/health", s.handler.Health)
	r.Get("/healthz/ready", s.handler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/whoami", s.handler.Whoami)

	r.Route("/admin/routes", func(r chi.Router) {
		r.Get("/", s.handler.ListRoutes)
		r.Post("/", s.handler.AddRoute)
		r.Delete("/", s.handler.RemoveRoute)
	})

	r.Route("/admin/logging", func(r chi.Router) {
		r.Get("/", s.handler.GetLogLevel)
		r.Post("/", s.handler.SetLogLevel)
	})

	if s.rateLimiter != nil {
		r.Route("/admin/ratelimit/{key}", func(r chi.Router) {
			r.Get("/", s.handleRateLimitPeek)
			r.Delete("/", s.handleRateLimitReset)
		})
	}
}

// handleRateLimitPeek reports the limiter state for a client key without
// consuming a request.
func (s *Server) handleRateLimitPeek(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	lctx, err := s.rateLimiter.Peek(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "rate limit store unavailable")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RateLimitStatusResponse{
		Key:       key,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reached:   lctx.Reached,
	})
}

// handleRateLimitReset clears the limiter counter for a client key.
func (s *Server) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	lctx, err := s.rateLimiter.Reset(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "rate limit store unavailable")
		return
	}

	logger.WithContext(r.Context()).Info("rate limit counter reset", logger.String("key", key))
	httputil.WriteJSON(w, http.StatusOK, RateLimitStatusResponse{
		Key:       key,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reached:   lctx.Reached,
	})
}

// Router exposes the configured handler chain, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logger.Info("starting HTTP server",
		logger.String("addr", s.cfg.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger is a middleware that logs HTTP requests.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("remote_addr", r.RemoteAddr),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

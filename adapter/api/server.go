// Package api serves the OCR manager over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

// Service is the part of the manager the API exposes.
type Service interface {
	ProcessFiles(ctx context.Context, input string, maxDepth int) *runtime.BatchReport
	Health() runtime.HealthReport
	Describe() []runtime.EngineInfo
	Metrics() runtime.Snapshot
}

var _ Service = (*runtime.Manager)(nil)

// Server is the HTTP API server.
type Server struct {
	router   *gin.Engine
	server   *http.Server
	logger   *slog.Logger
	service  Service
	checks   *observability.Checks
	counters *observability.InMemoryMetrics

	maxDepth     int
	checkTimeout time.Duration

	// busy serializes batches; a second POST /process gets 409.
	busy sync.Mutex
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CheckTimeout time.Duration
	MaxDepth     int
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
		CheckTimeout: 3 * time.Second,
		MaxDepth:     6,
	}
}

// Option customizes a Server.
type Option func(*Server)

// WithChecks reports sink reachability on /health.
func WithChecks(p *observability.Checks) Option {
	return func(s *Server) { s.checks = p }
}

// WithCounters exposes process counters on /metrics.
func WithCounters(m *observability.InMemoryMetrics) Option {
	return func(s *Server) { s.counters = m }
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, service Service, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultServerConfig().MaxDepth
	}

	s := &Server{
		logger:       logger,
		service:      service,
		maxDepth:     cfg.MaxDepth,
		checkTimeout: cfg.CheckTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(_ *gin.Context, _ *slog.Logger) *slog.Logger {
			return s.logger
		}),
	))
	router.Use(requestID)

	router.GET("/health", s.handleHealth)
	router.GET("/engines", s.handleEngines)
	router.GET("/metrics", s.handleMetrics)
	router.POST("/process", s.handleProcess)

	return router
}

// requestID tags the request context with X-Request-ID, generating one
// when absent, and echoes it back.
func requestID(c *gin.Context) {
	ctx := observability.WithRequestID(c.Request.Context(), c.GetHeader(requestIDHeader))
	c.Request = c.Request.WithContext(ctx)
	c.Header(requestIDHeader, observability.RequestIDFromContext(ctx))
	c.Next()
}

const requestIDHeader = "X-Request-ID"

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	return s.server.Shutdown(ctx)
}

// APIError represents an API error.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// With returns a copy carrying a specific message.
func (e *APIError) With(message string) *APIError {
	out := *e
	out.Message = message
	return &out
}

// Common API errors
var (
	ErrBadRequest = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: "Invalid request",
	}
	ErrBusy = &APIError{
		Status:  http.StatusConflict,
		Code:    "busy",
		Message: "A batch is already running",
	}
	ErrInternalServer = &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "Internal server error",
	}
)

func writeError(c *gin.Context, err *APIError) {
	c.JSON(err.Status, gin.H{"error": err})
}

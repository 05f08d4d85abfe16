package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	runtime.HealthReport
	Sinks []observability.CheckResult `json:"sinks,omitempty"`
}

// MetricsResponse is the body of GET /metrics.
type MetricsResponse struct {
	runtime.Snapshot
	Counters *observability.MetricsDump `json:"counters,omitempty"`
}

// ProcessRequest is the body of POST /process.
type ProcessRequest struct {
	Path     string `json:"path" binding:"required"`
	MaxDepth *int   `json:"max_depth"`
}

// handleHealth answers 503 when the rollup is RED or a sink is unreachable.
func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{HealthReport: s.service.Health()}
	if s.checks != nil {
		resp.Sinks = s.checks.Run(c.Request.Context(), s.checkTimeout)
	}

	status := http.StatusOK
	if resp.Status == sdk.HealthRed || !observability.AllOK(resp.Sinks) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) handleEngines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"engines": s.service.Describe()})
}

func (s *Server) handleMetrics(c *gin.Context) {
	resp := MetricsResponse{Snapshot: s.service.Metrics()}
	if s.counters != nil {
		dump := s.counters.Dump()
		resp.Counters = &dump
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProcess(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ErrBadRequest.With(err.Error()))
		return
	}
	depth := s.maxDepth
	if req.MaxDepth != nil {
		if *req.MaxDepth < 0 {
			writeError(c, ErrBadRequest.With("max_depth must not be negative"))
			return
		}
		depth = *req.MaxDepth
	}

	if !s.busy.TryLock() {
		writeError(c, ErrBusy)
		return
	}
	defer s.busy.Unlock()

	// The batch outlives a dropped connection so artifacts are not half written.
	ctx := context.WithoutCancel(c.Request.Context())
	report := s.service.ProcessFiles(ctx, req.Path, depth)
	if err := report.Err(); err != nil {
		s.logger.Warn("process request failed", "path", req.Path, "error", err)
		switch sdk.CategoryOf(err) {
		case sdk.CategoryInputValidation:
			writeError(c, ErrBadRequest.With(err.Error()))
		default:
			writeError(c, ErrInternalServer.With(err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, report)
}

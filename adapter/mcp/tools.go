// Package mcp exposes the OCR manager as MCP tools, resources and prompts.
package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

// Service is the part of the manager the MCP server exposes.
type Service interface {
	ProcessFiles(ctx context.Context, input string, maxDepth int) *runtime.BatchReport
	Health() runtime.HealthReport
	Describe() []runtime.EngineInfo
	Metrics() runtime.Snapshot
}

// ToolDependencies provides the manager and context for MCP tools.
type ToolDependencies struct {
	Service  Service
	Checks   *observability.Checks
	Version  string
	MaxDepth int
}

type processInput struct {
	Path     string `json:"path" jsonschema:"required"`
	MaxDepth *int   `json:"max_depth,omitempty"`
}

type processOutput struct {
	RunID     string               `json:"run_id"`
	Health    string               `json:"health"`
	Processed int                  `json:"processed"`
	Files     []runtime.FileReport `json:"files"`
	Error     string               `json:"error,omitempty"`
}

const checkTimeout = 3 * time.Second

// RegisterTools registers the OCR tools.
func RegisterTools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.Service == nil {
		return errors.New("service is required")
	}
	svc := deps.Service
	maxDepth := deps.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 6
	}

	srv.Tool("ocr.version").
		Description("Report the server version").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{"version": deps.Version}, nil
		})

	srv.Tool("ocr.health").
		Description("Overall and per-engine health derived from recent outcomes").
		Handler(func(ctx context.Context, input struct{}) (runtime.HealthReport, error) {
			return svc.Health(), nil
		})

	srv.Tool("ocr.engines").
		Description("List registered engines with version, file types and initialization errors").
		Handler(func(ctx context.Context, input struct{}) ([]runtime.EngineInfo, error) {
			return svc.Describe(), nil
		})

	srv.Tool("ocr.metrics").
		Description("Per-engine run counts, latencies and circuit breaker state").
		Handler(func(ctx context.Context, input struct{}) (runtime.Snapshot, error) {
			return svc.Metrics(), nil
		})

	srv.Tool("ocr.sinks").
		Description("Check that every configured artifact sink is reachable").
		Handler(func(ctx context.Context, input struct{}) ([]observability.CheckResult, error) {
			if deps.Checks == nil {
				return []observability.CheckResult{}, nil
			}
			return deps.Checks.Run(ctx, checkTimeout), nil
		})

	var busy sync.Mutex
	srv.Tool("ocr.process").
		Description("Run every engine over the documents under a file or directory and write the artifacts").
		Handler(func(ctx context.Context, input processInput) (*processOutput, error) {
			if input.Path == "" {
				return nil, errors.New("path is required")
			}
			depth := maxDepth
			if input.MaxDepth != nil {
				if *input.MaxDepth < 0 {
					return nil, errors.New("max_depth must not be negative")
				}
				depth = *input.MaxDepth
			}
			if !busy.TryLock() {
				return nil, errors.New("a batch is already running")
			}
			defer busy.Unlock()

			ctx = observability.WithRequestID(ctx, "")
			// An invalid input path is reported in Error alongside the health.
			report := svc.ProcessFiles(ctx, input.Path, depth)
			return &processOutput{
				RunID:     report.RunID,
				Health:    report.Health.String(),
				Processed: report.Processed(),
				Files:     report.Files,
				Error:     report.Error,
			}, nil
		})

	return nil
}

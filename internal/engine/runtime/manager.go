// Package runtime orchestrates OCR engines: it fans each document out to every
// registered engine, collects all outcomes, and rolls engine health into an
// overall status.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/multiocr/internal/engine/registry"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/felixgeelhaar/multiocr/internal/files"
	"github.com/felixgeelhaar/multiocr/internal/output"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// DefaultMaxDepth bounds directory recursion when none is given.
const DefaultMaxDepth = 6

// Discoverer lists candidate documents under an input path.
type Discoverer interface {
	Discover(root string, fileTypes []string, maxDepth int) ([]string, error)
}

// MetadataExtractor describes a document on disk.
type MetadataExtractor interface {
	Extract(path string) (*files.Metadata, error)
}

// ArtifactWriter persists per-document artifacts.
type ArtifactWriter interface {
	Write(ctx context.Context, sourcePath string, kind output.Kind, doc any) error
}

// Manager dispatches documents to registered engines.
type Manager struct {
	registry   *registry.Registry
	discoverer Discoverer
	extractor  MetadataExtractor
	writer     ArtifactWriter
	metrics    *MetricsCollector
	counters   observability.Metrics
	breakers   *breakers
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDiscoverer sets the document discoverer.
func WithDiscoverer(d Discoverer) Option {
	return func(m *Manager) { m.discoverer = d }
}

// WithMetadataExtractor sets the metadata extractor.
func WithMetadataExtractor(e MetadataExtractor) Option {
	return func(m *Manager) { m.extractor = e }
}

// WithWriter sets the artifact writer.
func WithWriter(w ArtifactWriter) Option {
	return func(m *Manager) { m.writer = w }
}

// WithMetrics sets the per-engine metrics collector.
func WithMetrics(c *MetricsCollector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithCounters sets the sink for batch-level counters and timings.
func WithCounters(c observability.Metrics) Option {
	return func(m *Manager) { m.counters = c }
}

// WithBreaker configures the per-engine circuit breaker.
func WithBreaker(cfg BreakerConfig) Option {
	return func(m *Manager) { m.breakers.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager over reg. Without options it discovers files
// on the local file system and writes artifacts to DefaultOutputDir.
func NewManager(reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		metrics:  NewMetricsCollector(),
		counters: observability.NoopMetrics{},
		logger:   slog.Default(),
	}
	m.breakers = newBreakers(DefaultBreakerConfig(), m.onBreakerState)
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = registry.NewRegistry(m.logger)
	}
	if m.discoverer == nil {
		m.discoverer = files.NewDiscoverer(m.logger)
	}
	if m.extractor == nil {
		m.extractor = files.NewMetadataExtractor()
	}
	if m.writer == nil {
		m.writer = output.NewFileWriter(output.DefaultOutputDir)
	}
	return m
}

// RegisterEngine appends an engine. Names are not de-duplicated.
func (m *Manager) RegisterEngine(engine sdk.Engine) {
	m.registry.Register(engine)
}

// Engines returns the registered engines in order.
func (m *Manager) Engines() []sdk.Engine {
	return m.registry.Engines()
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// ProcessFile runs every registered engine on path concurrently and waits
// for all of them. The aggregate holds one entry per engine name, in
// registration order.
func (m *Manager) ProcessFile(ctx context.Context, path string) *Aggregate {
	engines := m.registry.Engines()
	outcomes := make([]Outcome, len(engines))

	var wg sync.WaitGroup
	for i, engine := range engines {
		name := engine.Name()
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = m.runEngine(ctx, engine, name, path)
		}()
	}
	wg.Wait()

	aggregate := NewAggregate()
	for _, o := range outcomes {
		entry := Normalize(o)
		if o.Err == nil && entry.Failed() {
			m.logger.Warn("engine result not serializable", "engine", o.Engine, "file", path)
		}
		aggregate.Set(entry)
	}
	return aggregate
}

func (m *Manager) runEngine(ctx context.Context, engine sdk.Engine, name, path string) (out Outcome) {
	start := time.Now()
	out.Engine = name

	defer func() {
		if r := recover(); r != nil {
			out.Result = nil
			out.Err = sdk.EngineFailure(fmt.Sprintf("Unexpected error in %s: %v", name, r), nil)
		}
		duration := time.Since(start)
		m.metrics.RecordRun(name, duration, out.Err)

		status := "success"
		if out.Err != nil {
			status = "failure"
			m.logger.Error("engine failed",
				"engine", name,
				"file", path,
				"error", out.Err,
			)
		}
		m.counters.Counter(observability.MetricEngineRuns, 1,
			observability.T("engine", name), observability.T(observability.StatusKey, status))
		m.counters.Timing(observability.MetricEngineDuration, duration, observability.T("engine", name))
	}()

	run := func() (*sdk.Result, error) {
		return sdk.Run(ctx, engine, path, sdk.WithLogger(m.logger))
	}

	breaker := m.breakers.get(name)
	if breaker == nil {
		out.Result, out.Err = run()
		return out
	}

	out.Result, out.Err = breaker.Execute(run)
	if isBreakerRejection(out.Err) {
		m.metrics.RecordCircuitOpen(name)
		out.Err = circuitOpenError(name)
	}
	return out
}

func (m *Manager) onBreakerState(name string, from, to gobreaker.State) {
	m.logger.Info("circuit breaker state changed",
		"engine", name,
		"from", from.String(),
		"to", to.String(),
	)
	m.metrics.RecordCircuitBreakerChange(name, to.String())
}

// FileReport summarizes one processed document.
type FileReport struct {
	Path      string   `json:"path"`
	Succeeded []string `json:"succeeded,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// BatchReport summarizes a ProcessFiles call.
type BatchReport struct {
	RunID     string           `json:"run_id"`
	Input     string           `json:"input"`
	Files     []FileReport     `json:"files"`
	Health    sdk.HealthStatus `json:"health"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`

	failure error
}

// Err returns the failure that ended the batch before any document was
// processed, such as an invalid input path.
func (r *BatchReport) Err() error {
	return r.failure
}

// Fail records err as the reason the batch ended early.
func (r *BatchReport) Fail(err error) {
	r.Error = err.Error()
	r.failure = err
}

// Processed returns the number of documents whose artifacts were written.
func (r *BatchReport) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.Error == "" {
			n++
		}
	}
	return n
}

// ProcessFiles discovers documents under input and processes them one at a
// time: metadata is written, engines run, then the aggregate is written.
// A failing document is logged and the batch continues. A discovery failure
// ends the batch with nothing written; it is recorded on the report, which is
// still returned with the overall health.
func (m *Manager) ProcessFiles(ctx context.Context, input string, maxDepth int) *BatchReport {
	report := &BatchReport{
		RunID:     uuid.New().String(),
		Input:     input,
		StartedAt: time.Now(),
	}
	ctx = observability.WithCorrelationID(ctx, report.RunID)
	logger := m.logger.With(observability.CorrelationIDKey, report.RunID)
	timer := observability.StartTimer(ctx, "process_files").WithLogger(logger).WithMetrics(m.counters)

	defer func() {
		report.Health = m.OverallHealth()
		report.Duration = time.Since(report.StartedAt)
	}()

	paths, err := m.discoverer.Discover(input, m.registry.SupportedFileTypes(), maxDepth)
	if err != nil {
		logger.Error("file discovery failed", "input", input, "error", err)
		report.Fail(err)
		timer.StopWithError(err)
		return report
	}
	logger.Info("discovered files", "input", input, "count", len(paths))
	m.counters.Counter(observability.MetricFilesDiscovered, int64(len(paths)))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			logger.Warn("batch cancelled", "remaining", len(paths)-len(report.Files))
			report.Error = err.Error()
			break
		}
		report.Files = append(report.Files, m.processOne(ctx, logger, path))
	}

	timer.Stop()
	return report
}

func (m *Manager) processOne(ctx context.Context, logger *slog.Logger, path string) FileReport {
	fr := FileReport{Path: path}
	ctx = observability.WithDocument(ctx, path)
	timer := observability.StartTimer(ctx, "process_file").
		WithLogger(logger.With("file", path)).
		WithMetrics(m.counters)

	err := m.processDocument(ctx, path, &fr)
	if err != nil {
		fr.Error = err.Error()
		logger.Error("error processing file", "file", path, "error", err)
	} else {
		m.counters.Counter(observability.MetricFilesProcessed, 1)
	}
	timer.StopWithError(err)
	return fr
}

func (m *Manager) processDocument(ctx context.Context, path string, fr *FileReport) error {
	metadata, err := m.extractor.Extract(path)
	if err != nil {
		return err
	}
	if err := m.writer.Write(ctx, path, output.KindMetadata, metadata); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	aggregate := m.ProcessFile(ctx, path)
	fr.Succeeded = aggregate.Successes()
	fr.Failed = aggregate.Failures()

	if err := m.writer.Write(ctx, path, output.KindOCRResult, aggregate); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// OverallHealth rolls every registered engine's status into one.
func (m *Manager) OverallHealth() sdk.HealthStatus {
	engines := m.registry.Engines()
	statuses := make([]sdk.HealthStatus, len(engines))
	for i, e := range engines {
		statuses[i] = e.Health()
	}
	return RollUp(statuses)
}

// EngineHealth returns per-engine health in registration order.
func (m *Manager) EngineHealth() []EngineHealth {
	engines := m.registry.Engines()
	out := make([]EngineHealth, len(engines))
	for i, e := range engines {
		out[i] = describeHealth(e)
	}
	return out
}

// Describe returns every registered engine's description in registration order.
func (m *Manager) Describe() []EngineInfo {
	engines := m.registry.Engines()
	out := make([]EngineInfo, len(engines))
	for i, e := range engines {
		out[i] = Describe(e)
	}
	return out
}

// Health returns the overall status with per-engine detail.
func (m *Manager) Health() HealthReport {
	engines := m.EngineHealth()
	statuses := make([]sdk.HealthStatus, len(engines))
	for i, e := range engines {
		statuses[i] = e.Status
	}
	return HealthReport{Status: RollUp(statuses), Engines: engines}
}

// Metrics returns a snapshot of per-engine run metrics.
func (m *Manager) Metrics() Snapshot {
	snapshot := m.metrics.TakeSnapshot()
	for i := range snapshot.Engines {
		if state := m.breakers.state(snapshot.Engines[i].Engine); state != "" {
			snapshot.Engines[i].CircuitBreakerState = state
		}
	}
	return snapshot
}

// Shutdown releases engine resources.
func (m *Manager) Shutdown() error {
	return m.registry.Shutdown()
}

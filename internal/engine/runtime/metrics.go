package runtime

import (
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

// MetricsCollector collects runtime metrics for engines.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics map[string]*EngineMetrics
}

// EngineMetrics contains metrics for a single engine.
type EngineMetrics struct {
	// Engine is the engine name.
	Engine string `json:"engine"`

	// TotalRuns is the number of files dispatched to this engine.
	TotalRuns int64 `json:"total_runs"`

	// SuccessfulRuns is the number of runs that produced a result.
	SuccessfulRuns int64 `json:"successful_runs"`

	// FailedRuns is the number of runs that produced an error.
	FailedRuns int64 `json:"failed_runs"`

	// FailuresByCategory counts failures per error category.
	FailuresByCategory map[string]int64 `json:"failures_by_category,omitempty"`

	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`

	// LastRunAt is the timestamp of the last run.
	LastRunAt time.Time `json:"last_run_at"`

	// LastError is the last error message, if any.
	LastError string `json:"last_error,omitempty"`

	// CircuitBreakerState is the current circuit breaker state.
	CircuitBreakerState string `json:"circuit_breaker_state,omitempty"`

	// CircuitOpenCount is the number of runs rejected by an open breaker.
	CircuitOpenCount int64 `json:"circuit_open_count"`
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*EngineMetrics),
	}
}

// RecordRun records one engine run.
func (m *MetricsCollector) RecordRun(engine string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(engine)
	metrics.TotalRuns++
	metrics.TotalDuration += duration
	metrics.LastRunAt = time.Now()

	if err != nil {
		metrics.FailedRuns++
		metrics.LastError = err.Error()
		category := string(sdk.CategoryOf(err))
		if category == "" {
			category = "Unknown"
		}
		metrics.FailuresByCategory[category]++
	} else {
		metrics.SuccessfulRuns++
	}

	if metrics.TotalRuns == 1 || duration < metrics.MinDuration {
		metrics.MinDuration = duration
	}
	if duration > metrics.MaxDuration {
		metrics.MaxDuration = duration
	}
	metrics.AverageDuration = metrics.TotalDuration / time.Duration(metrics.TotalRuns)
}

// RecordCircuitBreakerChange records a circuit breaker state change.
func (m *MetricsCollector) RecordCircuitBreakerChange(engine, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreate(engine).CircuitBreakerState = state
}

// RecordCircuitOpen records a run rejected by an open breaker.
func (m *MetricsCollector) RecordCircuitOpen(engine string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreate(engine).CircuitOpenCount++
}

// Get returns metrics for a specific engine.
func (m *MetricsCollector) Get(engine string) *EngineMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, exists := m.metrics[engine]; exists {
		return metrics.clone()
	}
	return nil
}

// Reset resets all metrics.
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = make(map[string]*EngineMetrics)
}

func (m *MetricsCollector) getOrCreate(engine string) *EngineMetrics {
	if metrics, exists := m.metrics[engine]; exists {
		return metrics
	}
	metrics := &EngineMetrics{
		Engine:             engine,
		FailuresByCategory: make(map[string]int64),
	}
	m.metrics[engine] = metrics
	return metrics
}

func (e *EngineMetrics) clone() *EngineMetrics {
	c := *e
	c.FailuresByCategory = make(map[string]int64, len(e.FailuresByCategory))
	for k, v := range e.FailuresByCategory {
		c.FailuresByCategory[k] = v
	}
	return &c
}

// Snapshot contains a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Engines contains metrics for all engines, sorted by name.
	Engines []EngineMetrics `json:"engines"`

	// Summary contains aggregated summary statistics.
	Summary SnapshotSummary `json:"summary"`
}

// SnapshotSummary contains aggregated summary statistics.
type SnapshotSummary struct {
	TotalEngines    int   `json:"total_engines"`
	TotalRuns       int64 `json:"total_runs"`
	TotalSuccessful int64 `json:"total_successful"`
	TotalFailed     int64 `json:"total_failed"`

	// SuccessRate is the overall success rate (0-1).
	SuccessRate float64 `json:"success_rate"`

	// EnginesWithOpenCircuit lists engines with open circuit breakers.
	EnginesWithOpenCircuit []string `json:"engines_with_open_circuit,omitempty"`
}

// TakeSnapshot creates a snapshot of current metrics.
func (m *MetricsCollector) TakeSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		Timestamp: time.Now(),
		Engines:   make([]EngineMetrics, 0, len(m.metrics)),
	}

	var summary SnapshotSummary
	for _, metrics := range m.metrics {
		snapshot.Engines = append(snapshot.Engines, *metrics.clone())
		summary.TotalRuns += metrics.TotalRuns
		summary.TotalSuccessful += metrics.SuccessfulRuns
		summary.TotalFailed += metrics.FailedRuns
		if metrics.CircuitBreakerState == "open" {
			summary.EnginesWithOpenCircuit = append(summary.EnginesWithOpenCircuit, metrics.Engine)
		}
	}
	sort.Slice(snapshot.Engines, func(i, j int) bool {
		return snapshot.Engines[i].Engine < snapshot.Engines[j].Engine
	})
	sort.Strings(summary.EnginesWithOpenCircuit)

	summary.TotalEngines = len(m.metrics)
	if summary.TotalRuns > 0 {
		summary.SuccessRate = float64(summary.TotalSuccessful) / float64(summary.TotalRuns)
	}
	snapshot.Summary = summary
	return snapshot
}

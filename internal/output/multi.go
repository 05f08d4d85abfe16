package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

// MultiWriter writes every artifact to each of its writers in order. A
// failing sink does not stop the others; their errors are joined.
type MultiWriter struct {
	writers []Writer
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewMultiWriter fans out to writers.
func NewMultiWriter(logger *slog.Logger, metrics observability.Metrics, writers ...Writer) *MultiWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &MultiWriter{writers: writers, logger: logger, metrics: metrics}
}

// Writers returns the sinks.
func (m *MultiWriter) Writers() []Writer {
	return append([]Writer(nil), m.writers...)
}

// Write stores doc in every sink.
func (m *MultiWriter) Write(ctx context.Context, sourcePath string, kind Kind, doc any) error {
	var errs []error
	for _, w := range m.writers {
		sink := sinkName(w)
		tags := []observability.Tag{observability.T("sink", sink), observability.T("kind", string(kind))}
		if err := w.Write(ctx, sourcePath, kind, doc); err != nil {
			m.logger.Error("artifact write failed", "sink", sink, "kind", kind, "file", sourcePath, "error", err)
			m.metrics.Counter(observability.MetricArtifactErrors, 1, tags...)
			errs = append(errs, fmt.Errorf("%s: %w", sink, err))
			continue
		}
		m.metrics.Counter(observability.MetricArtifactsWritten, 1, tags...)
	}
	return errors.Join(errs...)
}

// Checks returns a check for every sink that can be pinged.
func (m *MultiWriter) Checks() *observability.Checks {
	checks := observability.NewChecks()
	for _, w := range m.writers {
		if p, ok := w.(Pinger); ok {
			checks.Register(sinkName(w), p.Ping)
		}
	}
	return checks
}

// Close closes every sink.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(w), err))
		}
	}
	return errors.Join(errs...)
}

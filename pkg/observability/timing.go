package observability

import (
	"context"
	"log/slog"
	"time"
)

// Timer measures one operation. Stopping it logs the outcome with the ids
// carried by its context and records duration and count metrics tagged by
// operation and status.
type Timer struct {
	ctx       context.Context
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

// StartTimer starts timing operation.
func StartTimer(ctx context.Context, operation string) *Timer {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Timer{ctx: ctx, operation: operation, start: time.Now()}
}

// WithLogger logs the outcome on stop: debug on success, error on failure.
func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

// WithMetrics records the outcome on stop.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// WithTags adds tags to the recorded metrics.
func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records a successful completion.
func (t *Timer) Stop() time.Duration {
	return t.StopWithError(nil)
}

// StopWithError records completion; a non-nil err counts as a failure.
func (t *Timer) StopWithError(err error) time.Duration {
	elapsed := time.Since(t.start)
	status := "ok"
	if err != nil {
		status = "error"
	}

	if t.logger != nil {
		attrs := []slog.Attr{
			slog.String(OperationKey, t.operation),
			slog.Int64(DurationKey, elapsed.Milliseconds()),
			slog.String(StatusKey, status),
		}
		level, msg := slog.LevelDebug, "operation completed"
		if err != nil {
			level, msg = slog.LevelError, "operation failed"
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		t.logger.LogAttrs(t.ctx, level, msg, attrs...)
	}

	if t.metrics != nil {
		tags := append(append([]Tag(nil), t.tags...), T(OperationKey, t.operation))
		t.metrics.Timing(MetricOperationDuration, elapsed, tags...)
		t.metrics.Counter(MetricOperationTotal, 1, tags...)
		if err != nil {
			t.metrics.Counter(MetricOperationErrors, 1, tags...)
		}
	}
	return elapsed
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Measure runs fn under a timer.
func Measure(ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func(context.Context) error) error {
	timer := StartTimer(ctx, operation).WithLogger(logger).WithMetrics(metrics)
	err := fn(ctx)
	timer.StopWithError(err)
	return err
}

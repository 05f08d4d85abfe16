package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage is a step of a single engine invocation.
type Stage string

const (
	StageNotStarted Stage = "not_started"
	StagePreparing  Stage = "preparing"
	StageProcessing Stage = "processing"
	StageParsing    Stage = "parsing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

func isValidTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	switch from {
	case StageNotStarted:
		return to == StagePreparing
	case StagePreparing:
		return to == StageProcessing
	case StageProcessing:
		return to == StageParsing
	case StageParsing:
		return to == StageDone
	}
	return false
}

// StageObserver is notified on every stage transition.
type StageObserver func(inv *Invocation, from, to Stage)

// Invocation tracks one run of one engine against one document.
type Invocation struct {
	mu sync.Mutex

	// ID is a unique identifier for this invocation.
	ID string

	// Engine is the name of the engine being run.
	Engine string

	// Path is the document being processed.
	Path string

	// Logger is tagged with the invocation's identifiers.
	Logger *slog.Logger

	// StartTime is when the invocation was created.
	StartTime time.Time

	stage     Stage
	err       error
	observers []StageObserver
}

// RunOption configures an invocation.
type RunOption func(*Invocation)

// WithLogger sets the logger used for stage logging.
func WithLogger(logger *slog.Logger) RunOption {
	return func(inv *Invocation) {
		if logger != nil {
			inv.Logger = logger
		}
	}
}

// WithStageObserver subscribes fn to stage transitions.
func WithStageObserver(fn StageObserver) RunOption {
	return func(inv *Invocation) {
		inv.observers = append(inv.observers, fn)
	}
}

// NewInvocation creates an invocation in the not_started stage.
func NewInvocation(engine, path string, opts ...RunOption) *Invocation {
	inv := &Invocation{
		ID:        uuid.New().String(),
		Engine:    engine,
		Path:      path,
		Logger:    slog.Default(),
		StartTime: time.Now(),
		stage:     StageNotStarted,
	}
	for _, opt := range opts {
		opt(inv)
	}
	inv.Logger = inv.Logger.With(
		"engine", engine,
		"invocation_id", inv.ID,
	)
	return inv
}

// Stage returns the current stage.
func (inv *Invocation) Stage() Stage {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.stage
}

// Err returns the failure that ended the invocation, if any.
func (inv *Invocation) Err() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.err
}

// Elapsed returns the duration since the invocation started.
func (inv *Invocation) Elapsed() time.Duration {
	return time.Since(inv.StartTime)
}

// Advance moves the invocation to the next stage.
func (inv *Invocation) Advance(to Stage) error {
	inv.mu.Lock()
	from := inv.stage
	if !isValidTransition(from, to) {
		inv.mu.Unlock()
		return fmt.Errorf("invalid stage transition %s -> %s", from, to)
	}
	inv.stage = to
	observers := inv.observers
	inv.mu.Unlock()

	for _, fn := range observers {
		fn(inv, from, to)
	}
	return nil
}

func (inv *Invocation) fail(err error) {
	inv.mu.Lock()
	inv.err = err
	inv.mu.Unlock()
	_ = inv.Advance(StageFailed)
}

// Run drives engine through prepare, process, and parse for one document.
// OCR errors propagate unchanged; any other error or panic is reported as a
// critical OCR engine failure. Engines implementing OutcomeRecorder receive
// one outcome after the process stage and one after the parse stage.
func Run(ctx context.Context, engine Engine, path string, opts ...RunOption) (*Result, error) {
	inv := NewInvocation(engine.Name(), path, opts...)
	result, err := run(ctx, inv, engine)
	if err != nil {
		err = classify(err)
		inv.fail(err)
		inv.Logger.Debug("ocr invocation failed", "path", path, "error", err)
		return nil, err
	}
	_ = inv.Advance(StageDone)
	inv.Logger.Debug("ocr invocation done", "path", path, "duration", inv.Elapsed())
	return result, nil
}

func run(ctx context.Context, inv *Invocation, engine Engine) (*Result, error) {
	recorder, _ := engine.(OutcomeRecorder)
	record := func(ok bool) {
		if recorder != nil {
			recorder.RecordOutcome(ok)
		}
	}

	if err := inv.Advance(StagePreparing); err != nil {
		return nil, err
	}
	prepared, err := guard(func() (*PreparedFile, error) {
		return engine.PrepareFile(ctx, inv.Path)
	})
	if err != nil {
		return nil, err
	}

	if err := inv.Advance(StageProcessing); err != nil {
		return nil, err
	}
	raw, err := guard(func() (*RawResult, error) {
		return engine.ProcessFile(ctx, prepared)
	})
	record(err == nil)
	if err != nil {
		return nil, err
	}

	if err := inv.Advance(StageParsing); err != nil {
		return nil, err
	}
	result, err := guard(func() (*Result, error) {
		res, err := engine.ParseResults(ctx, raw)
		if err == nil && res == nil {
			err = EngineFailure("Engine returned no result", nil)
		}
		return res, err
	})
	record(err == nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// guard runs a stage and converts a panic into an error.
func guard[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func classify(err error) error {
	if _, ok := AsOCRError(err); ok {
		return err
	}
	return CriticalFailure("Unexpected error during OCR process: "+err.Error(), err)
}

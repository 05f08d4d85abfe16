package sdk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine is a configurable engine for pipeline tests.
type stubEngine struct {
	Base
	prepare func(path string) (*PreparedFile, error)
	process func(p *PreparedFile) (*RawResult, error)
	parse   func(r *RawResult) (*Result, error)
	calls   []string
}

func newStubEngine(name string) *stubEngine {
	return &stubEngine{
		Base: NewBase(Descriptor{Name: name, FileTypes: []string{".png"}}),
		prepare: func(path string) (*PreparedFile, error) {
			return &PreparedFile{Path: path, Ext: ".png"}, nil
		},
		process: func(p *PreparedFile) (*RawResult, error) {
			return &RawResult{Prepared: p, Output: []byte("hello")}, nil
		},
		parse: func(r *RawResult) (*Result, error) {
			return &Result{Text: string(r.Output)}, nil
		},
	}
}

func (e *stubEngine) PrepareFile(_ context.Context, path string) (*PreparedFile, error) {
	e.calls = append(e.calls, "prepare")
	return e.prepare(path)
}

func (e *stubEngine) ProcessFile(_ context.Context, p *PreparedFile) (*RawResult, error) {
	e.calls = append(e.calls, "process")
	return e.process(p)
}

func (e *stubEngine) ParseResults(_ context.Context, r *RawResult) (*Result, error) {
	e.calls = append(e.calls, "parse")
	return e.parse(r)
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("runs stages in order and returns the parsed result", func(t *testing.T) {
		eng := newStubEngine("stub")

		result, err := Run(ctx, eng, "a.png")

		require.NoError(t, err)
		assert.Equal(t, "hello", result.Text)
		assert.Equal(t, []string{"prepare", "process", "parse"}, eng.calls)
	})

	t.Run("records one outcome per process and parse", func(t *testing.T) {
		eng := newStubEngine("stub")

		_, err := Run(ctx, eng, "a.png")

		require.NoError(t, err)
		assert.Equal(t, []bool{true, true}, eng.HealthWindow().Outcomes())
	})

	t.Run("preparation failure propagates unchanged and records nothing", func(t *testing.T) {
		eng := newStubEngine("stub")
		want := FileSystemError("File not found: a.png", ErrFileNotFound)
		eng.prepare = func(string) (*PreparedFile, error) { return nil, want }

		_, err := Run(ctx, eng, "a.png")

		assert.Same(t, want, err)
		assert.Equal(t, []string{"prepare"}, eng.calls)
		assert.Zero(t, eng.HealthWindow().Len())
	})

	t.Run("processing failure records a failure and skips parse", func(t *testing.T) {
		eng := newStubEngine("stub")
		eng.process = func(*PreparedFile) (*RawResult, error) {
			return nil, EngineFailure("Tesseract processing failed: boom", nil)
		}

		_, err := Run(ctx, eng, "a.png")

		require.Error(t, err)
		assert.Equal(t, CategoryEngine, CategoryOf(err))
		assert.False(t, IsCritical(err))
		assert.Equal(t, []bool{false}, eng.HealthWindow().Outcomes())
		assert.NotContains(t, eng.calls, "parse")
	})

	t.Run("parse failure records success then failure", func(t *testing.T) {
		eng := newStubEngine("stub")
		eng.parse = func(*RawResult) (*Result, error) {
			return nil, EngineFailure("Failed to parse results", nil)
		}

		_, err := Run(ctx, eng, "a.png")

		require.Error(t, err)
		assert.Equal(t, []bool{true, false}, eng.HealthWindow().Outcomes())
	})

	t.Run("plain errors become critical engine failures", func(t *testing.T) {
		eng := newStubEngine("stub")
		cause := errors.New("disk on fire")
		eng.process = func(*PreparedFile) (*RawResult, error) { return nil, cause }

		_, err := Run(ctx, eng, "a.png")

		ocrErr, ok := AsOCRError(err)
		require.True(t, ok)
		assert.Equal(t, "Unexpected error during OCR process: disk on fire", ocrErr.Message)
		assert.Equal(t, CategoryEngine, ocrErr.Category)
		assert.Equal(t, SeverityCritical, ocrErr.Severity)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("panics become critical engine failures", func(t *testing.T) {
		eng := newStubEngine("stub")
		eng.parse = func(*RawResult) (*Result, error) { panic("nil map") }

		result, err := Run(ctx, eng, "a.png")

		assert.Nil(t, result)
		assert.True(t, IsCritical(err))
		assert.Contains(t, err.Error(), "Unexpected error during OCR process: panic: nil map")
		assert.Equal(t, []bool{true, false}, eng.HealthWindow().Outcomes())
	})

	t.Run("nil result without error is a failure", func(t *testing.T) {
		eng := newStubEngine("stub")
		eng.parse = func(*RawResult) (*Result, error) { return nil, nil }

		_, err := Run(ctx, eng, "a.png")

		assert.Equal(t, CategoryEngine, CategoryOf(err))
	})

	t.Run("observer sees every transition", func(t *testing.T) {
		eng := newStubEngine("stub")
		var seen []Stage

		_, err := Run(ctx, eng, "a.png", WithStageObserver(func(_ *Invocation, _, to Stage) {
			seen = append(seen, to)
		}))

		require.NoError(t, err)
		assert.Equal(t, []Stage{StagePreparing, StageProcessing, StageParsing, StageDone}, seen)
	})

	t.Run("observer sees failure from processing", func(t *testing.T) {
		eng := newStubEngine("stub")
		eng.process = func(*PreparedFile) (*RawResult, error) { return nil, errors.New("x") }
		var last Stage
		var from Stage

		_, _ = Run(ctx, eng, "a.png", WithStageObserver(func(_ *Invocation, f, to Stage) {
			from, last = f, to
		}))

		assert.Equal(t, StageProcessing, from)
		assert.Equal(t, StageFailed, last)
	})
}

func TestInvocationTransitions(t *testing.T) {
	t.Run("rejects skipping a stage", func(t *testing.T) {
		inv := NewInvocation("stub", "a.png")
		assert.Error(t, inv.Advance(StageProcessing))
		assert.Equal(t, StageNotStarted, inv.Stage())
	})

	t.Run("failed is reachable before any stage", func(t *testing.T) {
		inv := NewInvocation("stub", "a.png")
		require.NoError(t, inv.Advance(StageFailed))
		assert.True(t, inv.Stage().IsTerminal())
	})

	t.Run("terminal stages accept nothing", func(t *testing.T) {
		inv := NewInvocation("stub", "a.png")
		require.NoError(t, inv.Advance(StagePreparing))
		require.NoError(t, inv.Advance(StageProcessing))
		require.NoError(t, inv.Advance(StageParsing))
		require.NoError(t, inv.Advance(StageDone))

		assert.Error(t, inv.Advance(StageFailed))
		assert.Error(t, inv.Advance(StagePreparing))
	})

	t.Run("assigns a unique id", func(t *testing.T) {
		a := NewInvocation("stub", "a.png")
		b := NewInvocation("stub", "a.png")
		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

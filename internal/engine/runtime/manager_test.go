package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/multiocr/internal/engine/registry"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/felixgeelhaar/multiocr/internal/files"
	"github.com/felixgeelhaar/multiocr/internal/output"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

// fakeEngine recognizes any path; behavior is set per test.
type fakeEngine struct {
	sdk.Base
	recognize func(path string) (*sdk.Result, error)
	calls     atomic.Int32
}

func newFakeEngine(name string, recognize func(path string) (*sdk.Result, error)) *fakeEngine {
	return &fakeEngine{
		Base:      sdk.NewBase(sdk.Descriptor{Name: name, FileTypes: []string{".png"}}),
		recognize: recognize,
	}
}

func textEngine(name, text string) *fakeEngine {
	return newFakeEngine(name, func(string) (*sdk.Result, error) {
		return &sdk.Result{Text: text}, nil
	})
}

func (e *fakeEngine) PrepareFile(_ context.Context, path string) (*sdk.PreparedFile, error) {
	return &sdk.PreparedFile{Path: path, Ext: ".png"}, nil
}

func (e *fakeEngine) ProcessFile(_ context.Context, p *sdk.PreparedFile) (*sdk.RawResult, error) {
	e.calls.Add(1)
	result, err := e.recognize(p.Path)
	if err != nil {
		return nil, err
	}
	return &sdk.RawResult{Prepared: p, Data: result}, nil
}

func (e *fakeEngine) ParseResults(_ context.Context, raw *sdk.RawResult) (*sdk.Result, error) {
	return raw.Data.(*sdk.Result), nil
}

// fixedHealthEngine reports a constant status.
type fixedHealthEngine struct {
	*fakeEngine
	status sdk.HealthStatus
}

func (e fixedHealthEngine) Health() sdk.HealthStatus { return e.status }

type fakeDiscoverer struct {
	paths []string
	err   error
	types []string
	depth int
}

func (d *fakeDiscoverer) Discover(_ string, fileTypes []string, maxDepth int) ([]string, error) {
	d.types = fileTypes
	d.depth = maxDepth
	return d.paths, d.err
}

type fakeExtractor struct {
	missing map[string]bool
}

func (e fakeExtractor) Extract(path string) (*files.Metadata, error) {
	if e.missing[path] {
		return nil, sdk.FileSystemError("File not found: "+path, sdk.ErrFileNotFound)
	}
	return &files.Metadata{FileName: path}, nil
}

type written struct {
	path string
	kind output.Kind
	body string
}

type memoryWriter struct {
	mu     sync.Mutex
	writes []written
}

func (w *memoryWriter) Write(_ context.Context, path string, kind output.Kind, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, written{path: path, kind: kind, body: string(data)})
	return nil
}

func newTestManager(opts ...Option) *Manager {
	logger := observability.Discard()
	base := []Option{
		WithLogger(logger),
		WithWriter(&memoryWriter{}),
		WithMetadataExtractor(fakeExtractor{}),
		WithDiscoverer(&fakeDiscoverer{}),
	}
	return NewManager(registry.NewRegistry(logger), append(base, opts...)...)
}

func TestManager_ProcessFile(t *testing.T) {
	ctx := context.Background()

	t.Run("collects every engine in registration order", func(t *testing.T) {
		m := newTestManager()
		m.RegisterEngine(textEngine("zeta", "z"))
		m.RegisterEngine(newFakeEngine("alpha", func(string) (*sdk.Result, error) {
			return nil, sdk.EngineFailure("alpha processing failed", nil)
		}))
		m.RegisterEngine(textEngine("mid", "m"))

		agg := m.ProcessFile(ctx, "a.png")

		assert.Equal(t, []string{"zeta", "alpha", "mid"}, agg.Keys())
		entry, _ := agg.Get("alpha")
		assert.Equal(t, "alpha processing failed", entry.Error)
		entry, _ = agg.Get("zeta")
		assert.Equal(t, "z", entry.Result.Text)
	})

	t.Run("runs engines concurrently", func(t *testing.T) {
		const n = 3
		var arrived sync.WaitGroup
		arrived.Add(n)
		barrier := func(string) (*sdk.Result, error) {
			arrived.Done()
			done := make(chan struct{})
			go func() { arrived.Wait(); close(done) }()
			select {
			case <-done:
				return &sdk.Result{Text: "ok"}, nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("engines ran sequentially")
			}
		}

		m := newTestManager()
		for _, name := range []string{"a", "b", "c"} {
			m.RegisterEngine(newFakeEngine(name, barrier))
		}

		agg := m.ProcessFile(ctx, "x.png")
		assert.Empty(t, agg.Failures())
	})

	t.Run("plain errors become critical failures", func(t *testing.T) {
		m := newTestManager()
		m.RegisterEngine(newFakeEngine("e", func(string) (*sdk.Result, error) {
			return nil, errors.New("socket closed")
		}))

		entry, _ := m.ProcessFile(ctx, "x.png").Get("e")
		assert.Equal(t, "Unexpected error during OCR process: socket closed", entry.Error)
	})

	t.Run("stage panic is contained", func(t *testing.T) {
		m := newTestManager()
		m.RegisterEngine(newFakeEngine("p", func(string) (*sdk.Result, error) {
			panic("boom")
		}))
		m.RegisterEngine(textEngine("ok", "fine"))

		agg := m.ProcessFile(ctx, "x.png")
		entry, _ := agg.Get("p")
		assert.Equal(t, "Unexpected error during OCR process: panic: boom", entry.Error)
		assert.Equal(t, []string{"ok"}, agg.Successes())
	})

	t.Run("unserializable result", func(t *testing.T) {
		m := newTestManager()
		m.RegisterEngine(newFakeEngine("e", func(string) (*sdk.Result, error) {
			return &sdk.Result{Metadata: sdk.ResultMetadata{Options: map[string]any{"ch": make(chan int)}}}, nil
		}))

		entry, _ := m.ProcessFile(ctx, "x.png").Get("e")
		assert.Equal(t, NotSerializableMessage, entry.Error)
	})

	t.Run("duplicate names keep the later outcome", func(t *testing.T) {
		m := newTestManager()
		first := textEngine("dup", "first")
		second := textEngine("dup", "second")
		m.RegisterEngine(first)
		m.RegisterEngine(second)

		agg := m.ProcessFile(ctx, "x.png")

		assert.Equal(t, 1, agg.Len())
		entry, _ := agg.Get("dup")
		assert.Equal(t, "second", entry.Result.Text)
		assert.Equal(t, int32(1), first.calls.Load())
		assert.Equal(t, int32(1), second.calls.Load())
	})

	t.Run("no engines", func(t *testing.T) {
		m := newTestManager()
		assert.Zero(t, m.ProcessFile(ctx, "x.png").Len())
	})

	t.Run("records metrics", func(t *testing.T) {
		counters := observability.NewInMemoryMetrics()
		m := newTestManager(WithCounters(counters))
		m.RegisterEngine(textEngine("e", "t"))

		m.ProcessFile(ctx, "x.png")

		snap := m.Metrics()
		require.Len(t, snap.Engines, 1)
		assert.Equal(t, int64(1), snap.Engines[0].SuccessfulRuns)
		assert.Equal(t, int64(1), counters.GetCounter(observability.MetricEngineRuns,
			observability.T("engine", "e"), observability.T(observability.StatusKey, "success")))
	})
}

func TestManager_ProcessFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("writes metadata then results per file", func(t *testing.T) {
		writer := &memoryWriter{}
		disc := &fakeDiscoverer{paths: []string{"a.png", "b.png"}}
		m := newTestManager(WithWriter(writer), WithDiscoverer(disc))
		m.RegisterEngine(textEngine("e", "hi"))

		report := m.ProcessFiles(ctx, "in", 4)
		require.NoError(t, report.Err())

		assert.Equal(t, []string{".png"}, disc.types)
		assert.Equal(t, 4, disc.depth)
		require.Len(t, writer.writes, 4)
		assert.Equal(t, written{"a.png", output.KindMetadata, `{"file_name":"a.png","file_path":"","file_size":0,"creation_time":0,"modification_time":0,"file_type":""}`}, writer.writes[0])
		assert.Equal(t, output.KindOCRResult, writer.writes[1].kind)
		assert.Contains(t, writer.writes[1].body, `"e":{"text":"hi"`)
		assert.Equal(t, "b.png", writer.writes[2].path)

		assert.NotEmpty(t, report.RunID)
		assert.Equal(t, 2, report.Processed())
		assert.Equal(t, []string{"e"}, report.Files[0].Succeeded)
	})

	t.Run("bad file does not abort the batch", func(t *testing.T) {
		writer := &memoryWriter{}
		disc := &fakeDiscoverer{paths: []string{"gone.png", "b.png"}}
		m := newTestManager(
			WithWriter(writer),
			WithDiscoverer(disc),
			WithMetadataExtractor(fakeExtractor{missing: map[string]bool{"gone.png": true}}),
		)
		m.RegisterEngine(textEngine("e", "hi"))

		report := m.ProcessFiles(ctx, "in", 6)
		require.NoError(t, report.Err())

		require.Len(t, report.Files, 2)
		assert.Equal(t, "File not found: gone.png", report.Files[0].Error)
		assert.Empty(t, report.Files[1].Error)
		require.Len(t, writer.writes, 2)
		assert.Equal(t, "b.png", writer.writes[0].path)
	})

	t.Run("discovery failure writes nothing", func(t *testing.T) {
		writer := &memoryWriter{}
		disc := &fakeDiscoverer{err: sdk.InputValidationError("Invalid input path: nope", nil)}
		m := newTestManager(WithWriter(writer), WithDiscoverer(disc))
		m.RegisterEngine(textEngine("e", "hi"))

		report := m.ProcessFiles(ctx, "nope", 6)

		require.Error(t, report.Err())
		assert.Equal(t, sdk.CategoryInputValidation, sdk.CategoryOf(report.Err()))
		assert.Equal(t, "Invalid input path: nope", report.Error)
		assert.Equal(t, sdk.HealthYellow, report.Health)
		assert.Empty(t, report.Files)
		assert.Empty(t, writer.writes)
	})

	t.Run("cancelled context stops before the next file", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		m := newTestManager(WithDiscoverer(&fakeDiscoverer{paths: []string{"a.png"}}))
		m.RegisterEngine(textEngine("e", "hi"))

		report := m.ProcessFiles(cctx, "in", 6)
		require.NoError(t, report.Err())
		assert.Empty(t, report.Files)
		assert.Equal(t, context.Canceled.Error(), report.Error)
	})
}

func TestManager_Health(t *testing.T) {
	fixed := func(name string, s sdk.HealthStatus) sdk.Engine {
		return fixedHealthEngine{fakeEngine: textEngine(name, ""), status: s}
	}

	tests := []struct {
		name     string
		statuses []sdk.HealthStatus
		want     sdk.HealthStatus
	}{
		{"no engines", nil, sdk.HealthRed},
		{"all green", []sdk.HealthStatus{sdk.HealthGreen, sdk.HealthGreen}, sdk.HealthGreen},
		{"any red", []sdk.HealthStatus{sdk.HealthGreen, sdk.HealthRed, sdk.HealthYellow}, sdk.HealthRed},
		{"mixed green and yellow", []sdk.HealthStatus{sdk.HealthGreen, sdk.HealthYellow}, sdk.HealthYellow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			for i, s := range tt.statuses {
				m.RegisterEngine(fixed(string(rune('a'+i)), s))
			}
			assert.Equal(t, tt.want, m.OverallHealth())
			assert.Equal(t, tt.want, m.Health().Status)
		})
	}

	t.Run("follows engine outcomes", func(t *testing.T) {
		m := newTestManager()
		eng := textEngine("e", "ok")
		m.RegisterEngine(eng)

		assert.Equal(t, sdk.HealthYellow, m.OverallHealth())

		for range 5 {
			m.ProcessFile(context.Background(), "x.png")
		}
		assert.Equal(t, sdk.HealthGreen, m.OverallHealth())

		report := m.Health()
		require.Len(t, report.Engines, 1)
		assert.Len(t, report.Engines[0].Window, sdk.HealthWindowCapacity)
		assert.Equal(t, 1.0, report.Engines[0].SuccessRate)
		assert.Equal(t, []string{".png"}, report.Engines[0].FileTypes)
	})
}

func TestManager_Breaker(t *testing.T) {
	m := newTestManager(WithBreaker(BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}))
	eng := newFakeEngine("flaky", func(string) (*sdk.Result, error) {
		return nil, sdk.EngineFailure("flaky processing failed", nil)
	})
	m.RegisterEngine(eng)

	for range 2 {
		m.ProcessFile(context.Background(), "x.png")
	}
	entry, _ := m.ProcessFile(context.Background(), "x.png").Get("flaky")

	assert.Equal(t, "Circuit breaker open for flaky", entry.Error)
	assert.Equal(t, int32(2), eng.calls.Load())

	snap := m.Metrics()
	require.Len(t, snap.Engines, 1)
	assert.Equal(t, "open", snap.Engines[0].CircuitBreakerState)
	assert.Equal(t, int64(1), snap.Engines[0].CircuitOpenCount)
}

// pickyEngine rejects corrupt.png during preparation.
type pickyEngine struct {
	*fakeEngine
}

func (e pickyEngine) PrepareFile(ctx context.Context, path string) (*sdk.PreparedFile, error) {
	if path == "corrupt.png" {
		return nil, sdk.InputValidationError("Unsupported or corrupt file: "+path, nil)
	}
	return e.fakeEngine.PrepareFile(ctx, path)
}

func TestManager_BreakerIgnoresInputErrors(t *testing.T) {
	m := newTestManager(WithBreaker(BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}))
	m.RegisterEngine(pickyEngine{fakeEngine: textEngine("picky", "fine")})

	for range 2 {
		entry, ok := m.ProcessFile(context.Background(), "corrupt.png").Get("picky")
		require.True(t, ok)
		assert.Contains(t, entry.Error, "Unsupported or corrupt file")
	}

	entry, ok := m.ProcessFile(context.Background(), "good.png").Get("picky")
	require.True(t, ok)
	assert.Empty(t, entry.Error)
	assert.NotContains(t, entry.Error, "Circuit breaker open")

	snap := m.Metrics()
	require.Len(t, snap.Engines, 1)
	assert.Equal(t, "closed", snap.Engines[0].CircuitBreakerState)
	assert.Equal(t, int64(0), snap.Engines[0].CircuitOpenCount)
}

func TestRollUp(t *testing.T) {
	assert.Equal(t, sdk.HealthRed, RollUp(nil))
	assert.Equal(t, sdk.HealthGreen, RollUp([]sdk.HealthStatus{sdk.HealthGreen}))
	assert.Equal(t, sdk.HealthYellow, RollUp([]sdk.HealthStatus{sdk.HealthYellow}))
	assert.Equal(t, sdk.HealthRed, RollUp([]sdk.HealthStatus{sdk.HealthYellow, sdk.HealthRed}))
}

// brokenEngine failed to initialize.
type brokenEngine struct {
	*fakeEngine
}

func (brokenEngine) InitErr() error {
	return sdk.CriticalFailure("Failed to initialize broken: no binary", nil)
}

func TestManager_Describe(t *testing.T) {
	m := newTestManager()

	ok := textEngine("ok", "hi")
	ok.SetVersion("1.2.0")
	m.RegisterEngine(ok)
	m.RegisterEngine(brokenEngine{fakeEngine: textEngine("broken", "")})

	infos := m.Describe()
	require.Len(t, infos, 2)

	assert.Equal(t, "ok", infos[0].Name)
	assert.Equal(t, "1.2.0", infos[0].Version)
	assert.Empty(t, infos[0].Error)
	assert.Equal(t, []string{".png"}, infos[0].FileTypes)

	assert.Equal(t, "broken", infos[1].Name)
	assert.Equal(t, "Failed to initialize broken: no binary", infos[1].Error)
}

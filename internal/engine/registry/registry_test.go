package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEngine is a simple mock engine for testing.
type mockEngine struct {
	sdk.Base
	closeErr error
	closed   bool
}

func newMockEngine(name string, types ...string) *mockEngine {
	return &mockEngine{Base: sdk.NewBase(sdk.Descriptor{Name: name, FileTypes: types})}
}

func (m *mockEngine) PrepareFile(_ context.Context, path string) (*sdk.PreparedFile, error) {
	return &sdk.PreparedFile{Path: path}, nil
}

func (m *mockEngine) ProcessFile(_ context.Context, p *sdk.PreparedFile) (*sdk.RawResult, error) {
	return &sdk.RawResult{Prepared: p}, nil
}

func (m *mockEngine) ParseResults(context.Context, *sdk.RawResult) (*sdk.Result, error) {
	return &sdk.Result{Text: m.Name()}, nil
}

func (m *mockEngine) Close() error {
	m.closed = true
	return m.closeErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRegistry(t *testing.T) {
	t.Run("keeps registration order", func(t *testing.T) {
		r := NewRegistry(testLogger())
		r.Register(newMockEngine("B", ".png"))
		r.Register(newMockEngine("A", ".pdf"))

		assert.Equal(t, []string{"B", "A"}, r.Names())
		assert.Equal(t, 2, r.Count())
	})

	t.Run("keeps duplicate names", func(t *testing.T) {
		r := NewRegistry(nil)
		first := newMockEngine("Tesseract", ".png")
		second := newMockEngine("Tesseract", ".png")
		r.Register(first)
		r.Register(second)

		assert.Equal(t, 2, r.Count())
		got, ok := r.Lookup("Tesseract")
		require.True(t, ok)
		assert.Same(t, second, got)
	})

	t.Run("Lookup misses unknown names", func(t *testing.T) {
		r := NewRegistry(nil)
		_, ok := r.Lookup("nope")
		assert.False(t, ok)
	})

	t.Run("Engines returns a snapshot", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Register(newMockEngine("A", ".png"))

		snapshot := r.Engines()
		r.Register(newMockEngine("B", ".png"))

		assert.Len(t, snapshot, 1)
	})

	t.Run("SupportedFileTypes is the ordered union", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Register(newMockEngine("A", ".png", ".jpg"))
		r.Register(newMockEngine("B", ".jpg", ".pdf"))

		assert.Equal(t, []string{".png", ".jpg", ".pdf"}, r.SupportedFileTypes())
	})

	t.Run("Shutdown closes engines and joins errors", func(t *testing.T) {
		r := NewRegistry(testLogger())
		ok := newMockEngine("A", ".png")
		failing := newMockEngine("B", ".png")
		failing.closeErr = errors.New("socket busy")
		r.Register(ok)
		r.Register(failing)

		err := r.Shutdown()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine B: socket busy")
		assert.True(t, ok.closed)
		assert.True(t, failing.closed)
	})
}

func TestFactories(t *testing.T) {
	ctx := context.Background()
	mockFactory := func(_ context.Context, desc sdk.Descriptor, _ *slog.Logger) (sdk.Engine, error) {
		if desc.Name == "broken" {
			return nil, errors.New("cannot start")
		}
		return newMockEngine(desc.Name, ".png"), nil
	}

	t.Run("Build dispatches on type", func(t *testing.T) {
		f := NewFactories()
		f.Register("mock", mockFactory)

		eng, err := f.Build(ctx, EngineSpec{Type: "mock", Descriptor: sdk.Descriptor{Name: "M"}}, nil)

		require.NoError(t, err)
		assert.Equal(t, "M", eng.Name())
	})

	t.Run("Build rejects unknown types", func(t *testing.T) {
		_, err := NewFactories().Build(ctx, EngineSpec{Type: "abbyy"}, nil)
		assert.ErrorIs(t, err, sdk.ErrUnknownEngineType)
	})

	t.Run("BuildInto registers in order and skips failures", func(t *testing.T) {
		f := NewFactories()
		f.Register("mock", mockFactory)
		r := NewRegistry(nil)

		err := f.BuildInto(ctx, r, []EngineSpec{
			{Type: "mock", Descriptor: sdk.Descriptor{Name: "first"}},
			{Type: "mock", Descriptor: sdk.Descriptor{Name: "broken"}},
			{Type: "mock", Disabled: true, Descriptor: sdk.Descriptor{Name: "off"}},
			{Type: "mock", Descriptor: sdk.Descriptor{Name: "last"}},
		}, testLogger())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot start")
		assert.Equal(t, []string{"first", "last"}, r.Names())
	})

	t.Run("default set knows remote engine types", func(t *testing.T) {
		types := DefaultFactories().Types()
		assert.Contains(t, types, TypeGRPC)
		assert.Contains(t, types, TypePlugin)
	})
}

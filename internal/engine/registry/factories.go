package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/felixgeelhaar/multiocr/internal/engine/grpc"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

// Engine types understood by the default factory set.
const (
	TypeTesseract    = "tesseract"
	TypeLibTesseract = "libtesseract"
	TypeVision       = "vision"
	TypePlugin       = "plugin"
	TypeGRPC         = "grpc"
)

// Factories maps engine types to constructors.
type Factories struct {
	mu     sync.RWMutex
	byType map[string]sdk.Factory
}

// NewFactories creates an empty factory set.
func NewFactories() *Factories {
	return &Factories{byType: make(map[string]sdk.Factory)}
}

var defaultFactories = func() *Factories {
	f := NewFactories()
	f.Register(TypeGRPC, grpc.DialEngine)
	f.Register(TypePlugin, func(ctx context.Context, desc sdk.Descriptor, logger *slog.Logger) (sdk.Engine, error) {
		return NewLoader(logger).Load(ctx, desc)
	})
	return f
}()

// DefaultFactories returns the process-wide factory set that engine
// packages register into from init.
func DefaultFactories() *Factories {
	return defaultFactories
}

// RegisterFactory registers a factory in the default set.
func RegisterFactory(engineType string, factory sdk.Factory) {
	defaultFactories.Register(engineType, factory)
}

// Register adds or replaces the factory for engineType.
func (f *Factories) Register(engineType string, factory sdk.Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byType[engineType] = factory
}

// Types returns the registered engine types, sorted.
func (f *Factories) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.byType))
	for t := range f.byType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Build constructs the engine a spec describes.
func (f *Factories) Build(ctx context.Context, spec EngineSpec, logger *slog.Logger) (sdk.Engine, error) {
	f.mu.RLock()
	factory, ok := f.byType[spec.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", sdk.ErrUnknownEngineType, spec.Type)
	}
	return factory(ctx, spec.Descriptor, logger)
}

// BuildInto constructs every enabled spec and registers the engines in order.
// Specs that fail to build are logged and skipped; their errors are joined.
func (f *Factories) BuildInto(ctx context.Context, r *Registry, specs []EngineSpec, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var errs []error
	for _, spec := range specs {
		if spec.Disabled {
			continue
		}
		engine, err := f.Build(ctx, spec, logger)
		if err != nil {
			logger.Error("failed to build engine",
				"engine", spec.Name,
				"type", spec.Type,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("engine %s (%s): %w", spec.Name, spec.Type, err))
			continue
		}
		r.Register(engine)
	}
	return errors.Join(errs...)
}

// Package registry provides engine registration, construction, and lifecycle management.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

// Registry holds engines in registration order.
// Names are not de-duplicated: every registration is kept, and lookups by
// name resolve to the latest one.
type Registry struct {
	mu      sync.RWMutex
	engines []sdk.Engine
	logger  *slog.Logger
}

// NewRegistry creates a new engine registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register appends an engine.
func (r *Registry) Register(engine sdk.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if slices.ContainsFunc(r.engines, func(e sdk.Engine) bool { return e.Name() == name }) {
		r.logger.Warn("engine name registered twice; later results replace earlier ones",
			"engine", name,
		)
	}
	r.engines = append(r.engines, engine)

	r.logger.Info("registered engine",
		"engine", name,
		"file_types", engine.SupportedFileTypes(),
	)
}

// Engines returns a snapshot of the registered engines in order.
func (r *Registry) Engines() []sdk.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.engines)
}

// Lookup returns the latest engine registered under name.
func (r *Registry) Lookup(name string) (sdk.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.engines) - 1; i >= 0; i-- {
		if r.engines[i].Name() == name {
			return r.engines[i], true
		}
	}
	return nil, false
}

// Names returns engine names in registration order, duplicates included.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.engines))
	for i, e := range r.engines {
		names[i] = e.Name()
	}
	return names
}

// SupportedFileTypes returns the union of all engines' file types, in first-seen order.
func (r *Registry) SupportedFileTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var types []string
	for _, e := range r.engines {
		for _, t := range e.SupportedFileTypes() {
			if !slices.Contains(types, t) {
				types = append(types, t)
			}
		}
	}
	return types
}

// Count returns the number of registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// Shutdown closes every engine holding external resources.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.engines {
		closer, ok := e.(sdk.Closer)
		if !ok {
			continue
		}
		r.logger.Debug("closing engine", "engine", e.Name())
		if err := closer.Close(); err != nil {
			r.logger.Error("failed to close engine",
				"engine", e.Name(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("engine %s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Discovery finds plugin engines installed under search directories.
// Each plugin lives in its own subdirectory holding an engine.yaml spec and
// the plugin binary.
type Discovery struct {
	// SearchPaths are directories to search for plugins.
	SearchPaths []string

	logger *slog.Logger
}

// NewDiscovery creates a new plugin discovery service.
func NewDiscovery(searchPaths []string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		SearchPaths: searchPaths,
		logger:      logger,
	}
}

// Discover returns plugin specs in search path order, then directory order.
// Unreadable paths and malformed specs are logged and skipped.
func (d *Discovery) Discover() []EngineSpec {
	var specs []EngineSpec
	for _, searchPath := range d.SearchPaths {
		found, err := d.discoverInPath(searchPath)
		if err != nil {
			d.logger.Warn("failed to search plugin path",
				"path", searchPath,
				"error", err,
			)
			continue
		}
		specs = append(specs, found...)
	}

	d.logger.Debug("plugin discovery complete", "found", len(specs))
	return specs
}

func (d *Discovery) discoverInPath(searchPath string) ([]EngineSpec, error) {
	info, err := os.Stat(searchPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", searchPath)
	}

	entries, err := os.ReadDir(searchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var specs []EngineSpec
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(searchPath, entry.Name())
		manifestPath := filepath.Join(pluginDir, DefaultManifestFilename)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		spec, err := LoadPluginSpec(manifestPath)
		if err != nil {
			d.logger.Warn("failed to load plugin spec",
				"path", manifestPath,
				"error", err,
			)
			continue
		}
		specs = append(specs, *spec)
		d.logger.Debug("discovered plugin",
			"engine", spec.Name,
			"path", pluginDir,
		)
	}
	return specs, nil
}

// LoadPluginSpec reads a single plugin spec. The type defaults to plugin and
// a relative binary resolves against the spec's directory.
func LoadPluginSpec(path string) (*EngineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin spec: %w", err)
	}

	var spec EngineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse plugin spec: %w", err)
	}
	if spec.Type == "" {
		spec.Type = TypePlugin
	}
	if spec.Type == TypePlugin && spec.Options.GetString("binary", "") == "" {
		spec.Options = spec.Options.Merge(map[string]any{"binary": filepath.Base(filepath.Dir(path))})
	}
	spec.Descriptor = spec.Descriptor.Normalized()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.resolveBinary(filepath.Dir(path))
	return &spec, nil
}

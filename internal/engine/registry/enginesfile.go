package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"gopkg.in/yaml.v3"
)

// DefaultManifestFilename is the engine spec file expected in a plugin directory.
const DefaultManifestFilename = "engine.yaml"

// EngineSpec declares one engine to construct.
type EngineSpec struct {
	// Type selects the factory: "tesseract", "libtesseract", "vision", "plugin", "grpc".
	Type string `yaml:"type"`

	// Disabled skips the engine without removing it from the file.
	Disabled bool `yaml:"disabled,omitempty"`

	sdk.Descriptor `yaml:",inline"`
}

// Validate validates the spec fields.
func (s EngineSpec) Validate() error {
	if strings.TrimSpace(s.Type) == "" {
		return fmt.Errorf("engine %q: type is required", s.Name)
	}
	if s.Type == TypePlugin && s.Options.GetString("binary", "") == "" {
		return fmt.Errorf("engine %q: plugin engines require a binary option", s.Name)
	}
	return nil
}

// EnginesFile is the on-disk list of engines, in registration order.
type EnginesFile struct {
	Engines []EngineSpec `yaml:"engines"`

	// dir is the directory containing the file; relative plugin binaries resolve against it.
	dir string
}

// DefaultEnginesFile is used when no engines file is configured.
func DefaultEnginesFile() *EnginesFile {
	return &EnginesFile{
		Engines: []EngineSpec{
			{Type: TypeTesseract, Descriptor: sdk.Descriptor{Name: "Tesseract"}},
		},
	}
}

// LoadEnginesFile loads an engines file.
func LoadEnginesFile(path string) (*EnginesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engines file: %w", err)
	}

	file, err := ParseEnginesFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.dir = filepath.Dir(path)
	file.resolveBinaries()
	return file, nil
}

// ParseEnginesFile decodes and validates engines file content.
func ParseEnginesFile(data []byte) (*EnginesFile, error) {
	var file EnginesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse engines file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engines file: %w", err)
	}
	for i := range file.Engines {
		file.Engines[i].Descriptor = file.Engines[i].Descriptor.Normalized()
	}
	return &file, nil
}

// Validate validates every spec.
func (f *EnginesFile) Validate() error {
	if len(f.Engines) == 0 {
		return errors.New("no engines declared")
	}
	var errs []error
	for _, spec := range f.Engines {
		if err := spec.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Enabled returns the specs that are not disabled.
func (f *EnginesFile) Enabled() []EngineSpec {
	out := make([]EngineSpec, 0, len(f.Engines))
	for _, spec := range f.Engines {
		if !spec.Disabled {
			out = append(out, spec)
		}
	}
	return out
}

// Append adds specs after the declared ones.
func (f *EnginesFile) Append(specs ...EngineSpec) {
	f.Engines = append(f.Engines, specs...)
}

// Dir returns the directory containing the file.
func (f *EnginesFile) Dir() string {
	return f.dir
}

func (f *EnginesFile) resolveBinaries() {
	for i := range f.Engines {
		f.Engines[i].resolveBinary(f.dir)
	}
}

func (s *EngineSpec) resolveBinary(dir string) {
	binary := s.Options.GetString("binary", "")
	if s.Type != TypePlugin || binary == "" || filepath.IsAbs(binary) || dir == "" {
		return
	}
	resolved, err := filepath.Abs(filepath.Join(dir, binary))
	if err != nil {
		return
	}
	s.Options = s.Options.Merge(sdk.Options{"binary": resolved})
}

package sdk

import (
	"maps"
	"slices"
	"time"
)

// Base carries the identity and health bookkeeping shared by engine
// implementations. Embed it and implement the three pipeline stages.
type Base struct {
	desc    Descriptor
	version string
	health  *HealthWindow
}

// NewBase creates a Base from a descriptor.
func NewBase(desc Descriptor) Base {
	desc = desc.Normalized()
	return Base{
		desc:    desc,
		version: desc.Version,
		health:  NewHealthWindow(HealthWindowCapacity),
	}
}

// Name returns the engine name.
func (b *Base) Name() string {
	return b.desc.Name
}

// SupportedFileTypes returns a copy of the accepted extensions.
func (b *Base) SupportedFileTypes() []string {
	return slices.Clone(b.desc.FileTypes)
}

// Descriptor returns the engine descriptor.
func (b *Base) Descriptor() Descriptor {
	return b.desc
}

// Options returns the engine options.
func (b *Base) Options() Options {
	return b.desc.Options
}

// Version returns the engine version.
func (b *Base) Version() string {
	return b.version
}

// SetVersion records the version discovered at initialization.
func (b *Base) SetVersion(v string) {
	b.version = v
}

// Health derives the engine's status from its window.
func (b *Base) Health() HealthStatus {
	return b.health.Status()
}

// HealthWindow exposes the engine's outcome window.
func (b *Base) HealthWindow() *HealthWindow {
	return b.health
}

// RecordOutcome appends a stage outcome to the window.
func (b *Base) RecordOutcome(ok bool) {
	b.health.Record(ok)
}

// Validate runs the shared document checks against the engine's file types.
func (b *Base) Validate(path string) (*PreparedFile, error) {
	return ValidateFile(path, b.desc.FileTypes)
}

// ResultMetadata builds metadata for a result produced in elapsed time.
func (b *Base) ResultMetadata(elapsed time.Duration, lang string) ResultMetadata {
	return ResultMetadata{
		EngineName:     b.desc.Name,
		EngineVersion:  b.version,
		ProcessingTime: elapsed.Seconds(),
		Lang:           lang,
		Options:        maps.Clone(map[string]any(b.desc.Options)),
	}
}

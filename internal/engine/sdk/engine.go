// Package sdk provides the core interfaces and types for MultiOCR's engine system.
// An engine turns a single document into a structured Result through a fixed
// prepare, process, parse pipeline and keeps a rolling record of its own health.
package sdk

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Engine is the capability set every OCR engine implements.
type Engine interface {
	// PrepareFile validates the input document and returns a handle for processing.
	// Implementations must not mutate shared state.
	PrepareFile(ctx context.Context, path string) (*PreparedFile, error)

	// ProcessFile performs the recognition work. It may block on external
	// processes, native libraries, or the network.
	ProcessFile(ctx context.Context, prepared *PreparedFile) (*RawResult, error)

	// ParseResults normalizes the engine-native output into a Result.
	ParseResults(ctx context.Context, raw *RawResult) (*Result, error)

	// Name returns the engine's identifying name.
	Name() string

	// SupportedFileTypes returns the lower-cased extensions, with leading dot,
	// the engine accepts.
	SupportedFileTypes() []string

	// Health returns the status derived from the engine's health window.
	Health() HealthStatus
}

// OutcomeRecorder is implemented by engines that track stage outcomes in a
// health window. Run feeds it one outcome per completed process and parse stage.
type OutcomeRecorder interface {
	RecordOutcome(ok bool)
}

// HealthReporter exposes the raw window behind an engine's health status.
type HealthReporter interface {
	HealthWindow() *HealthWindow
}

// Closer is implemented by engines holding external resources.
type Closer interface {
	Close() error
}

// Factory creates an engine from its descriptor.
// Used by the registry to build engines listed in an engines file.
type Factory func(ctx context.Context, desc Descriptor, logger *slog.Logger) (Engine, error)

// PreparedFile is a validated document ready for processing.
type PreparedFile struct {
	Path string
	Ext  string
	Size int64
}

// Load reads the document's bytes.
func (p *PreparedFile) Load() ([]byte, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, FileSystemError("File not readable: "+p.Path, err)
	}
	return data, nil
}

// RawResult is the engine-native output of ProcessFile.
type RawResult struct {
	Prepared *PreparedFile

	// Output holds textual or serialized engine output.
	Output []byte

	// Data holds a structured payload when the engine produces one.
	Data any

	StartedAt time.Time
	Duration  time.Duration
}

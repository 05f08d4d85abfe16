package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileWriter writes artifacts as JSON files in a directory.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a writer for dir. The directory is created on the
// first write.
func NewFileWriter(dir string) *FileWriter {
	if dir == "" {
		dir = DefaultOutputDir
	}
	return &FileWriter{dir: dir}
}

// Dir returns the output directory.
func (w *FileWriter) Dir() string {
	return w.dir
}

// Name returns the sink name.
func (w *FileWriter) Name() string {
	return "file"
}

// Path returns where the artifact for sourcePath lands.
func (w *FileWriter) Path(sourcePath string, kind Kind) string {
	return filepath.Join(w.dir, ArtifactName(sourcePath, kind))
}

// Write stores doc as <dir>/<base>_<kind>.json, replacing any earlier file.
func (w *FileWriter) Write(_ context.Context, sourcePath string, kind Kind, doc any) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(w.Path(sourcePath, kind), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

// Close is a no-op.
func (w *FileWriter) Close() error {
	return nil
}

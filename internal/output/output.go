// Package output persists per-document artifacts: the file metadata and the
// aggregated recognition results.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultOutputDir is where FileWriter puts artifacts when no directory is set.
const DefaultOutputDir = "ocr_output"

// Kind names an artifact.
type Kind string

const (
	KindMetadata  Kind = "metadata"
	KindOCRResult Kind = "ocr_result"
)

// Writer stores artifacts for a source document.
type Writer interface {
	Write(ctx context.Context, sourcePath string, kind Kind, doc any) error
	Close() error
}

// Pinger is implemented by writers backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Named is implemented by writers that report a sink name for logs and checks.
type Named interface {
	Name() string
}

// BaseName returns the source file name without directory or extension.
func BaseName(sourcePath string) string {
	name := filepath.Base(sourcePath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ArtifactName returns "<base>_<kind>.json" for a source document.
func ArtifactName(sourcePath string, kind Kind) string {
	return fmt.Sprintf("%s_%s.json", BaseName(sourcePath), kind)
}

// Encode renders doc as two-space indented JSON.
func Encode(doc any) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func sinkName(w Writer) string {
	if n, ok := w.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", w)
}

package files

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

// Metadata describes a document before recognition. Times are seconds since
// the Unix epoch.
type Metadata struct {
	FileName         string  `json:"file_name"`
	FilePath         string  `json:"file_path"`
	FileSize         int64   `json:"file_size"`
	CreationTime     float64 `json:"creation_time"`
	ModificationTime float64 `json:"modification_time"`
	FileType         string  `json:"file_type"`
}

// MetadataExtractor reads Metadata from the local file system.
type MetadataExtractor struct {
	stat func(string) (os.FileInfo, error)
}

// NewMetadataExtractor creates an extractor over the local file system.
func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{stat: os.Stat}
}

// Extract describes the file at path.
func (e *MetadataExtractor) Extract(path string) (*Metadata, error) {
	info, err := e.stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sdk.FileSystemError("File not found: "+path, errors.Join(sdk.ErrFileNotFound, err))
		}
		return nil, sdk.FileSystemError("Cannot stat file: "+path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &Metadata{
		FileName:         filepath.Base(path),
		FilePath:         abs,
		FileSize:         info.Size(),
		CreationTime:     epochSeconds(changeTime(info)),
		ModificationTime: epochSeconds(info.ModTime()),
		FileType:         strings.ToLower(filepath.Ext(path)),
	}, nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

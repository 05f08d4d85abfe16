// Package files finds documents to recognize and describes them on disk.
package files

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

// Discoverer walks an input path for documents with supported extensions.
type Discoverer struct {
	logger  *slog.Logger
	stat    func(string) (os.FileInfo, error)
	readDir func(string) ([]os.DirEntry, error)
}

// NewDiscoverer creates a discoverer over the local file system.
func NewDiscoverer(logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		logger:  logger,
		stat:    os.Stat,
		readDir: os.ReadDir,
	}
}

// Discover returns the documents under root whose extension is in fileTypes.
//
// A file root yields itself when supported. A directory root is walked in
// lexical order; files directly inside it are at depth 0 and each
// subdirectory adds one level. Directories deeper than maxDepth are skipped.
// Unreadable subdirectories are logged and skipped.
func (d *Discoverer) Discover(root string, fileTypes []string, maxDepth int) ([]string, error) {
	supported := make(map[string]struct{}, len(fileTypes))
	for _, ft := range sdk.NormalizeFileTypes(fileTypes) {
		supported[ft] = struct{}{}
	}

	info, err := d.stat(root)
	if err != nil {
		return nil, sdk.InputValidationError("Invalid input path: "+root, err)
	}

	if info.Mode().IsRegular() {
		if isSupported(root, supported) {
			return []string{root}, nil
		}
		return []string{}, nil
	}
	if !info.IsDir() {
		return nil, sdk.InputValidationError("Invalid input path: "+root, nil)
	}

	found := []string{}
	if maxDepth < 0 {
		return found, nil
	}

	entries, err := d.readDir(root)
	if err != nil {
		return nil, sdk.FileSystemError("Cannot read directory: "+root, err)
	}

	d.walk(root, entries, 0, maxDepth, supported, &found)
	return found, nil
}

func (d *Discoverer) walk(dir string, entries []os.DirEntry, depth, maxDepth int, supported map[string]struct{}, found *[]string) {
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			if depth+1 > maxDepth {
				continue
			}
			children, err := d.readDir(path)
			if err != nil {
				d.logger.Warn("skipping unreadable directory", "path", path, "error", err)
				continue
			}
			d.walk(path, children, depth+1, maxDepth, supported, found)
		case entry.Type()&fs.ModeType == 0 || entry.Type()&fs.ModeSymlink != 0:
			if entry.Type()&fs.ModeSymlink != 0 {
				info, err := d.stat(path)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
			}
			if isSupported(path, supported) {
				*found = append(*found, path)
			}
		}
	}
}

func isSupported(path string, supported map[string]struct{}) bool {
	_, ok := supported[strings.ToLower(filepath.Ext(path))]
	return ok
}

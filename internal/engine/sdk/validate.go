package sdk

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	// Image decoders consulted by the integrity check.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pdfMagic = []byte("%PDF-")

// ValidateFile checks that path exists, is readable, has one of fileTypes as
// its extension, and carries a well-formed header for its format.
func ValidateFile(path string, fileTypes []string) (*PreparedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, FileSystemError("File not found: "+path, ErrFileNotFound)
		}
		return nil, FileSystemError("File not accessible: "+path, err)
	}
	if info.IsDir() {
		return nil, InputValidationError("Not a regular file: "+path, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, FileSystemError("No read permission for file: "+path, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(fileTypes, ext) {
		return nil, InputValidationError("Unsupported file type: "+ext, ErrUnsupportedFileType)
	}

	if err := checkIntegrity(f, ext); err != nil {
		return nil, InputValidationError(
			fmt.Sprintf("Invalid or corrupted file: %s. Error: %v", path, err),
			errors.Join(ErrCorruptFile, err),
		)
	}

	return &PreparedFile{Path: path, Ext: ext, Size: info.Size()}, nil
}

func checkIntegrity(r io.Reader, ext string) error {
	if ext == ".pdf" {
		header := make([]byte, len(pdfMagic))
		if _, err := io.ReadFull(r, header); err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
		if !bytes.Equal(header, pdfMagic) {
			return errors.New("missing PDF header")
		}
		return nil
	}
	_, _, err := image.DecodeConfig(r)
	return err
}

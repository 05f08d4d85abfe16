//go:build cgo && libtesseract

package main

// Links the in-process tesseract engine (type "libtesseract"). Build with
// -tags libtesseract on a host with the tesseract and leptonica headers.
import _ "github.com/felixgeelhaar/multiocr/internal/engine/builtin/libtesseract"

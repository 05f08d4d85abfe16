// Package libtesseract recognizes documents in process through the
// tesseract C API. It needs cgo plus the tesseract and leptonica
// development headers, so it is only compiled with -tags libtesseract:
//
//	go build -tags libtesseract ./cmd/multiocr
package libtesseract

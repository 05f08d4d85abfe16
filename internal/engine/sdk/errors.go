package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors for common engine error conditions.
var (
	// ErrFileNotFound is returned when the input document does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFileType is returned when an engine does not accept the document's extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrCorruptFile is returned when the document fails the integrity check.
	ErrCorruptFile = errors.New("invalid or corrupted file")

	// ErrNotSerializable is returned when a result cannot be encoded as JSON.
	ErrNotSerializable = errors.New("result not serializable")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrUnknownEngineType is returned when no factory is registered for an engine type.
	ErrUnknownEngineType = errors.New("unknown engine type")

	// ErrInvalidConfig is returned when engine configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Category classifies where a failure originated.
type Category string

const (
	CategoryInputValidation Category = "Input Validation"
	CategoryFileSystem      Category = "File System"
	CategoryEngine          Category = "OCR Engine"
)

// Severity distinguishes expected failures from unexpected ones.
type Severity string

const (
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// OCRError is the structured failure produced by engines and the pipeline.
type OCRError struct {
	// Message is the human readable description carried into result documents.
	Message string

	// Category is where the failure originated.
	Category Category

	// Severity is error for anticipated failures and critical for unexpected ones.
	Severity Severity

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Detail renders the error with its classification for log output.
func (e *OCRError) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Severity, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Severity, e.Message)
}

// NewOCRError creates a new OCR error.
func NewOCRError(message string, category Category, severity Severity, err error) *OCRError {
	return &OCRError{
		Message:  message,
		Category: category,
		Severity: severity,
		Err:      err,
	}
}

// InputValidationError reports a document the engine cannot accept.
func InputValidationError(message string, err error) *OCRError {
	return NewOCRError(message, CategoryInputValidation, SeverityError, err)
}

// FileSystemError reports a document that cannot be found or read.
func FileSystemError(message string, err error) *OCRError {
	return NewOCRError(message, CategoryFileSystem, SeverityError, err)
}

// EngineFailure reports a recognition or parsing failure.
func EngineFailure(message string, err error) *OCRError {
	return NewOCRError(message, CategoryEngine, SeverityError, err)
}

// CriticalFailure reports an engine failure nobody anticipated.
func CriticalFailure(message string, err error) *OCRError {
	return NewOCRError(message, CategoryEngine, SeverityCritical, err)
}

// AsOCRError extracts the OCR error from an error chain.
func AsOCRError(err error) (*OCRError, bool) {
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return ocrErr, true
	}
	return nil, false
}

// CategoryOf returns the category of an OCR error, or an empty category.
func CategoryOf(err error) Category {
	if ocrErr, ok := AsOCRError(err); ok {
		return ocrErr.Category
	}
	return ""
}

// IsCritical checks if the error is a critical OCR error.
func IsCritical(err error) bool {
	if ocrErr, ok := AsOCRError(err); ok {
		return ocrErr.Severity == SeverityCritical
	}
	return false
}

// IsCircuitOpen checks if the error is due to an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

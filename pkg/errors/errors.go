// Package errors defines the error taxonomy of the detection engine:
// validation, partial ingestion, index corruption, and persistence failures,
// plus an AppError wrapper carrying a caller-facing message.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before tokenization (empty or
	// oversized text).
	ErrValidation = errors.New("invalid input")

	// ErrPartialIngestion marks an ingestion that failed mid-document. The
	// engine rolls back every posting already inserted for that document.
	ErrPartialIngestion = errors.New("partial ingestion")

	// ErrIndexCorruption marks a snapshot whose tree violates the balance
	// invariant or fails its checksum. The index is rebuilt from the
	// document registry instead.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrPersistence marks a failed snapshot save. The in-memory index
	// remains valid.
	ErrPersistence = errors.New("persistence failure")

	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Reason returns a short label for the sentinel class of err, used as a
// metric label for ingest failures.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPartialIngestion):
		return "partial_ingestion"
	case errors.Is(err, ErrIndexCorruption):
		return "index_corruption"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, ErrDocumentExists):
		return "exists"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

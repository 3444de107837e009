// Package domain defines the error taxonomy shared by every layer.
// Errors carry a machine-readable code that the HTTP boundary maps to a
// status and returns verbatim in the error body.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced at the HTTP boundary.
const (
	CodeInvalidConfiguration      = "invalid_configuration"
	CodeCorruptState              = "corrupt_state"
	CodeEmptyDocument             = "empty_document"
	CodeEmbeddingUnavailable      = "embedding_unavailable"
	CodeGenerationUnavailable     = "generation_unavailable"
	CodeMalformedGenerationOutput = "malformed_generation_output"
	CodeUnauthorized              = "unauthorized"
	CodeNotFound                  = "not_found"
	CodeValidation                = "invalid_request_error"
	CodeAlreadyExists             = "already_exists"
	CodeInternal                  = "api_error"
)

// Error is a coded error. Two Errors match under errors.Is when their codes
// are equal, so wrapped instances still compare against the sentinels below.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates a coded error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error with an underlying cause.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is matching across layers.
var (
	ErrInvalidConfiguration      = New(CodeInvalidConfiguration, "invalid configuration")
	ErrCorruptState              = New(CodeCorruptState, "persisted state is corrupt")
	ErrEmptyDocument             = New(CodeEmptyDocument, "document has no extractable text")
	ErrEmbeddingUnavailable      = New(CodeEmbeddingUnavailable, "embedding service unavailable")
	ErrGenerationUnavailable     = New(CodeGenerationUnavailable, "generation service unavailable")
	ErrMalformedGenerationOutput = New(CodeMalformedGenerationOutput, "generation output could not be parsed")
	ErrUnauthorized              = New(CodeUnauthorized, "unauthorized")
	ErrNotFound                  = New(CodeNotFound, "not found")
)

// Code extracts the taxonomy code from err, or CodeInternal for plain errors.
func Code(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a coded error to an HTTP status.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch Code(err) {
	case CodeValidation, CodeInvalidConfiguration, CodeEmptyDocument, CodeAlreadyExists, CodeMalformedGenerationOutput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeEmbeddingUnavailable, CodeGenerationUnavailable:
		return http.StatusBadGateway
	case CodeCorruptState, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

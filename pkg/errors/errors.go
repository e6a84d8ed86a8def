package errors

import (
	"errors"
	"fmt"
)

/*
KGError represents a categorized knowledge graph error. The Code is stable
across releases so callers (and the HTTP layer) can switch on it.
*/
type KGError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

/*
Error implements the error interface for KGError.
*/
func (e *KGError) Error() string {
	return fmt.Sprintf("kg error %d: %s", e.Code, e.Message)
}

// Engine error codes. 1xxx are caller errors, 2xxx are internal/storage.
var (
	ErrInvalidReference = &KGError{Code: 1000, Message: "relation references a missing entity"}
	ErrInvalidPayload   = &KGError{Code: 1001, Message: "payload contains an unsupported attribute value"}
	ErrNotFound         = &KGError{Code: 1004, Message: "record not found"}

	ErrPersistence  = &KGError{Code: 2000, Message: "failed to persist knowledge graph"}
	ErrLegacyFormat = &KGError{Code: 2001, Message: "legacy pickle format is not supported"}
	ErrBackup       = &KGError{Code: 2002, Message: "snapshot backup failed"}
)

// WithMessagef creates a *copy* of a KGError with a formatted message.
// It does not modify the original error variable.
func (e *KGError) WithMessagef(format string, args ...any) *KGError {
	newErr := *e // Create a shallow copy
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// WithData creates a copy of a KGError carrying extra context data.
func (e *KGError) WithData(data any) *KGError {
	newErr := *e
	newErr.Data = data
	return &newErr
}

// Is makes KGError copies produced by WithMessagef/WithData match their
// sentinel under errors.Is by comparing codes.
func (e *KGError) Is(target error) bool {
	var kg *KGError
	if !errors.As(target, &kg) {
		return false
	}
	return e.Code == kg.Code
}

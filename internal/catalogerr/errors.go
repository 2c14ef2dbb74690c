// Package catalogerr defines the error taxonomy shared across the catalog
// engine. Collaborators and the coordinator classify failures into a small
// set of codes rather than distinct error types, per the coded-error
// approach used throughout the teacher's repository.
package catalogerr

import (
	"errors"
	"fmt"
)

// Code is one of the classified failure categories a caller can switch on.
type Code string

const (
	PermissionDenied Code = "PERMISSION_DENIED"
	FolderNotFound   Code = "FOLDER_NOT_FOUND"
	ScanCancelled    Code = "SCAN_CANCELLED"
	DatabaseError    Code = "DATABASE_ERROR"
	StorageFull      Code = "STORAGE_FULL"
	ThumbnailError   Code = "THUMBNAIL_ERROR"
	Unknown          Code = "UNKNOWN"
)

// Error wraps an underlying cause with a classification code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap classifies an existing error, preserving it as the cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the classification code from err. It returns "" when
// err is nil and Unknown when err does not wrap an *Error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

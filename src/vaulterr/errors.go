// Package vaulterr defines the two error families used throughout vaultcore:
// FileError for extrinsic archive/I-O failures and CoreError for intrinsic
// memory-repository failures, with a single lifting direction from the former
// into the latter. Callers match on reason codes through errors.Is/errors.As
// rather than formatted strings.
package vaulterr

import (
	"errors"
	"fmt"
)

// FileReason identifies the kind of FileError without requiring callers to
// type-switch on formatted strings.
type FileReason string

const (
	FileNotFound         FileReason = "not_found"
	FilePermissionDenied FileReason = "permission_denied"
	FileExtractionFailed FileReason = "extraction_failed"
	FileCreationFailed   FileReason = "creation_failed"
	FileInvalidPassword  FileReason = "invalid_password"
	FileCorruptedArchive FileReason = "corrupted_archive"
	FileIoError          FileReason = "io_error"
	FileLockFailed       FileReason = "lock_failed"
	FileLockTimeout      FileReason = "lock_timeout"
	FileToolUnavailable  FileReason = "tool_unavailable"
)

// FileError is the extrinsic error family: everything that can go wrong
// talking to the filesystem or the archive tool.
type FileError struct {
	Reason  FileReason
	Path    string
	Message string
	Err     error
}

func (e *FileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Path)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	return string(e.Reason)
}

func (e *FileError) Unwrap() error { return e.Err }

// Is reports whether target carries the same reason, so callers can write
// errors.Is(err, &vaulterr.FileError{Reason: vaulterr.FileInvalidPassword}).
func (e *FileError) Is(target error) bool {
	var t *FileError
	if errors.As(target, &t) {
		return t.Reason == e.Reason
	}
	return false
}

func NewFileError(reason FileReason, path string, err error) *FileError {
	return &FileError{Reason: reason, Path: path, Err: err}
}

func NewFileErrorf(reason FileReason, err error, format string, args ...any) *FileError {
	return &FileError{Reason: reason, Message: fmt.Sprintf(format, args...), Err: err}
}

// Retryable reports whether the cloud-retry policy in the archive provider
// is allowed to retry this error.
func (e *FileError) Retryable() bool {
	switch e.Reason {
	case FileIoError, FileLockTimeout, FilePermissionDenied:
		return true
	default:
		return false
	}
}

// CoreReason identifies the kind of CoreError.
type CoreReason string

const (
	CoreNotInitialized      CoreReason = "not_initialized"
	CoreAlreadyInitialized  CoreReason = "already_initialized"
	CoreCredentialNotFound  CoreReason = "credential_not_found"
	CoreValidationError     CoreReason = "validation_error"
	CoreSerializationError  CoreReason = "serialization_error"
	CoreInvalidCredential   CoreReason = "invalid_credential"
	CoreStructureError      CoreReason = "structure_error"
	CoreInternalError       CoreReason = "internal_error"
	CoreInvalidState        CoreReason = "invalid_state"
	CoreFileOperation       CoreReason = "file_operation"
)

// CoreError is the intrinsic error family: everything the memory repository
// and manager can produce on their own, plus FileOperation as the single
// lifting variant for provider errors.
type CoreError struct {
	Reason  CoreReason
	Message string
	File    *FileError
}

func (e *CoreError) Error() string {
	if e.Reason == CoreFileOperation && e.File != nil {
		return fmt.Sprintf("file operation error: %s", e.File.Error())
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Message)
	}
	return string(e.Reason)
}

func (e *CoreError) Unwrap() error {
	if e.File != nil {
		return e.File
	}
	return nil
}

func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if errors.As(target, &t) {
		return t.Reason == e.Reason
	}
	return false
}

func NewCoreError(reason CoreReason, format string, args ...any) *CoreError {
	return &CoreError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Lift wraps a FileError as a CoreError, the single allowed direction of
// conversion between the two families.
func Lift(err *FileError) *CoreError {
	return &CoreError{Reason: CoreFileOperation, File: err}
}

// LiftErr lifts a generic error that may or may not be a *FileError. An
// error that is already a *CoreError passes through unchanged so its reason
// code survives; only genuinely unknown errors collapse to InternalError.
func LiftErr(err error) *CoreError {
	if err == nil {
		return nil
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	var fe *FileError
	if errors.As(err, &fe) {
		return Lift(fe)
	}
	return NewCoreError(CoreInternalError, "%s", err.Error())
}

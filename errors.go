package gamearchive

import (
	"errors"
	"fmt"
)

// ArchiveErrorDetail is the interface satisfied by every error this module
// returns: a sentinel ArchiveError value on its own, or one of those values
// decorated with extra context via WithMessage or Wrap.
type ArchiveErrorDetail interface {
	error
	WithMessage(message string) ArchiveErrorDetail
	Wrap(err error) ArchiveErrorDetail
}

// ArchiveError is a named error kind, one per row of this module's error
// table. Callers compare against these with [errors.Is].
type ArchiveError string

// The error kinds an archive operation can surface.
const (
	ErrFormatMismatch    = ArchiveError("archive does not match the expected format")
	ErrTruncated         = ArchiveError("stream ends inside a directory entry or file body")
	ErrTooMany           = ArchiveError("directory is full")
	ErrNameTooLong       = ArchiveError("file name too long")
	ErrNameConflict      = ArchiveError("file name conflicts with an existing entry")
	ErrFileNotFound      = ArchiveError("no such file in archive")
	ErrFileInUse         = ArchiveError("file is still open")
	ErrFilterMissing     = ArchiveError("filter is not registered")
	ErrFilterMismatch    = ArchiveError("source and destination filters differ")
	ErrBackingIOError    = ArchiveError("backing stream I/O failed")
	ErrReadOnlyOperation = ArchiveError("operation not permitted on a read-only archive")
)

func (e ArchiveError) Error() string {
	return string(e)
}

func (e ArchiveError) WithMessage(message string) ArchiveErrorDetail {
	return detailedArchiveError{
		message:  fmt.Sprintf("%s: %s", string(e), message),
		original: e,
	}
}

func (e ArchiveError) Wrap(err error) ArchiveErrorDetail {
	return detailedArchiveError{
		message:  fmt.Sprintf("%s: %s", string(e), err.Error()),
		original: err,
		kind:     e,
	}
}

// -----------------------------------------------------------------------------

type detailedArchiveError struct {
	message  string
	original error
	kind     error // the error Wrap was called on, matched by Is
}

func (e detailedArchiveError) Error() string {
	return e.message
}

func (e detailedArchiveError) WithMessage(message string) ArchiveErrorDetail {
	return detailedArchiveError{
		message:  fmt.Sprintf("%s: %s", e.message, message),
		original: e,
	}
}

func (e detailedArchiveError) Wrap(err error) ArchiveErrorDetail {
	return detailedArchiveError{
		message:  fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		original: err,
		kind:     e,
	}
}

func (e detailedArchiveError) Unwrap() error {
	return e.original
}

// Is lets errors.Is match a wrapped error against the kind it was wrapped
// with, as well as against the wrapped error reached through Unwrap.
func (e detailedArchiveError) Is(target error) bool {
	return e.kind != nil && errors.Is(e.kind, target)
}

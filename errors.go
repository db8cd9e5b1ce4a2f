package copyhash

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Failure kinds. Every error returned by this package wraps exactly one of
// them, so callers can branch with errors.Is.
var (
	ErrDecode            = errors.New("image cannot be decoded")
	ErrFormat            = errors.New("malformed hash")
	ErrShape             = errors.New("composite hash has wrong length")
	ErrSchema            = errors.New("table header mismatch")
	ErrValidation        = errors.New("invalid field")
	ErrEmptyInput        = errors.New("nothing to write")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// newError builds an error of the given kind and records the call stack,
// which Traceback renders for diagnostics.
func newError(kind error, format string, args ...any) error {
	return pkgerrors.WithStack(fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)))
}

// wrapError attaches kind and operation context to err.
func wrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(fmt.Errorf("%s: %w: %w", operation, kind, err))
}

// IsAnticipated reports whether err is a failure a record may legitimately
// end in (status "error"), as opposed to a defect ("unhandled error").
func IsAnticipated(err error) bool {
	for _, kind := range []error{ErrDecode, ErrFormat, ErrShape, ErrValidation} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Traceback renders err with the stack recorded where it was created.
func Traceback(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}

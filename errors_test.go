package copyhash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsAnticipated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{newError(ErrDecode, "x"), true},
		{newError(ErrFormat, "x"), true},
		{newError(ErrShape, "x"), true},
		{newError(ErrValidation, "x"), true},
		{fmt.Errorf("outer: %w", newError(ErrFormat, "x")), true},
		{wrapError(ErrDecode, "open", context.DeadlineExceeded), true},
		{newError(ErrSchema, "x"), false},
		{newError(ErrEmptyInput, "x"), false},
		{newError(ErrUnsupportedFormat, "x"), false},
		{errors.New("plain"), false},
	}
	for _, tc := range tests {
		if got := IsAnticipated(tc.err); got != tc.want {
			t.Errorf("IsAnticipated(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	if wrapError(ErrDecode, "op", nil) != nil {
		t.Error("wrapError(nil) is not nil")
	}

	cause := errors.New("disk on fire")
	err := wrapError(ErrDecode, "open a.png", cause)
	if !errors.Is(err, ErrDecode) || !errors.Is(err, cause) {
		t.Errorf("%v does not wrap both kind and cause", err)
	}
	if got := err.Error(); got != "open a.png: image cannot be decoded: disk on fire" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTraceback(t *testing.T) {
	t.Parallel()

	if Traceback(nil) != "" {
		t.Error("Traceback(nil) is not empty")
	}
	tb := Traceback(newError(ErrShape, "expected 4"))
	if !strings.HasPrefix(tb, "composite hash has wrong length: expected 4") {
		t.Errorf("traceback does not start with the message: %q", tb)
	}
	if !strings.Contains(tb, "TestTraceback") {
		t.Errorf("traceback has no stack: %q", tb)
	}
}

package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrRemoteOpenFailed  = errors.New("remote open failed")
	ErrLocalReadFailed   = errors.New("local read failed")
	ErrRemoteWriteFailed = errors.New("remote write failed")
	ErrSizeMismatch      = errors.New("size mismatch")
	ErrRemoteCloseFailed = errors.New("remote close failed")
)

// Error is returned by Engine.Transfer. Kind is one of the Err* sentinels
// above and is matched by errors.Is.
type Error struct {
	Kind error

	// Offset is the number of bytes fully written when the failure happened.
	Offset uint64

	// Expected and Actual are set for ErrSizeMismatch.
	Expected uint64
	Actual   uint64

	Err error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case ErrSizeMismatch:
		msg = fmt.Sprintf("%v: expected %d bytes, read %d", e.Kind, e.Expected, e.Actual)
	case ErrRemoteOpenFailed:
		msg = e.Kind.Error()
	default:
		msg = fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

package cropper

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is against a *Error.
var (
	ErrLoading = errors.New("failed to load image")
	ErrSaving  = errors.New("failed to create result")
)

// ErrorKind tells which stage of a crop failed.
type ErrorKind int

const (
	KindLoading ErrorKind = iota + 1
	KindSaving
)

func (k ErrorKind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindSaving:
		return "saving"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	if k == KindSaving {
		return ErrSaving
	}
	return ErrLoading
}

// Error is a crop failure with its cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

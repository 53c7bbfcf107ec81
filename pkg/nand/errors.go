package nand

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLayout is matched by every geometry validation failure.
	ErrInvalidLayout = errors.New("nand: invalid layout")

	// ErrMisalignedFile means a dump is not a whole number of raw pages.
	ErrMisalignedFile = errors.New("nand: file size is not a multiple of the raw page size")
)

// LayoutError reports which layout field broke an invariant.
type LayoutError struct {
	Field  string
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("nand: invalid layout: %s: %s", e.Field, e.Reason)
}

func (e *LayoutError) Unwrap() error {
	return ErrInvalidLayout
}

func invalid(field, format string, args ...interface{}) error {
	return &LayoutError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

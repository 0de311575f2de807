package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrAlreadyExists = errors.New("reservation already exists")

	// ErrStaleWrite means the stored reservation changed since it was read.
	ErrStaleWrite = errors.New("reservation was modified concurrently")
)

package errors

import "errors"

var (
	ErrNotFound = errors.New("payment record not found")

	// ErrDuplicate is returned when the external reference is taken or the
	// reservation already has a pending record.
	ErrDuplicate = errors.New("payment record violates a unique constraint")

	ErrStaleWrite = errors.New("payment record was modified concurrently")
)

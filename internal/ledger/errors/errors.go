package errors

import "errors"

var (
	ErrBlockNotFound = errors.New("occupancy block not found")

	ErrBlockExists = errors.New("occupancy block already exists")
)

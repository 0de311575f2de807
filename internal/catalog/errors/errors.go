package errors

import "errors"

var (
	ErrResourceNotFound = errors.New("resource not found")

	ErrPartnerUserNotFound = errors.New("partner user not found")
)

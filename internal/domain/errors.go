package domain

import "errors"

// Domain error taxonomy. Services return these (possibly wrapped);
// transport maps them to HTTP status codes with errors.Is.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrDuplicateReview        = errors.New("review already exists for this product")
	ErrInvalidStateTransition = errors.New("invalid order status transition")
	ErrExternalService        = errors.New("external service failure")
)

package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid transition")
)

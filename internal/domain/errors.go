package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownModel    = errors.New("unknown model")
	ErrTerminalState   = errors.New("generation already terminal")
	ErrProviderFailure = errors.New("provider failure")
)

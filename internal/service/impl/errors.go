package impl

import "errors"

const MinPasswordLength = 6

var (
	ErrEmptyPassword   = errors.New("empty password")
	ErrEmptyCredential = errors.New("empty credential(s)")
	ErrEmptyUsername   = errors.New("empty username")
	ErrEmptyEmail      = errors.New("empty email")
	ErrPasswordLength  = errors.New("password must be at least 6 characters")
)

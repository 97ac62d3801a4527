package domain

import "errors"

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidPassword         = errors.New("invalid password")
	ErrNotVerified             = errors.New("email not verified")
	ErrUserExists              = errors.New("user with this email or username already exists")
	ErrTenantIDExhausted       = errors.New("could not allocate a unique app id")
	ErrProfileAlreadyCompleted = errors.New("profile already completed")
)

package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email is already registered")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrNotFound           = errors.New("user not found")
)

package auth

import "errors"

var (
	ErrEmptySecret     = errors.New("jwt secret cannot be empty")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

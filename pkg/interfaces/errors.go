package interfaces

import "errors"

// Errors shared by every store implementation.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

package library

import "errors"

var (
	ErrMaterialNotFound = errors.New("material not found")
	ErrPremiumRequired  = errors.New("premium plan required for this material")
	ErrEmptyNote        = errors.New("note content cannot be empty")
	ErrUserNotFound     = errors.New("user not found")
)

package types

import "errors"

var (
	ErrUnknownPlan    = errors.New("unknown plan")
	ErrInvalidPayload = errors.New("invalid event payload")
)

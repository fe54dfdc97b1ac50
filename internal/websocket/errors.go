package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed   = errors.New("connection closed")
	ErrWriteTimeout       = errors.New("write timeout")
	ErrInvalidJSON        = errors.New("invalid JSON data")
	ErrInvalidCredentials = errors.New("credentials require a positive user id")
)

// Registry-related errors
var (
	ErrNilConnection              = errors.New("connection cannot be nil")
	ErrConnectionNotAuthenticated = errors.New("connection must be authenticated before joining a channel")
	ErrEmptyChannelKey            = errors.New("channel key cannot be empty")
)

// Handler-related errors
var (
	ErrMissingToken = errors.New("missing access token")
)

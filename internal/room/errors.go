package room

import "errors"

var (
	ErrInvalidMode    = errors.New("invalid mode: must be 'one_on_one' or 'group'")
	ErrInvalidRoomKey = errors.New("level tag and subject are required")
	ErrInvalidUser    = errors.New("requester must be an authenticated user")
	ErrRoomNotFound   = errors.New("room not found")
)

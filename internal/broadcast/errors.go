package broadcast

import "errors"

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNotRoomMember     = errors.New("user is not a member of this room")
)

package interfaces

import (
	"context"

	"growtive/pkg/types"
)

// RoomMatcher places users into study rooms.
type RoomMatcher interface {
	// FindOrCreateRoom returns a room matching the key that now has userID as
	// a member, creating one when no waiting room has space.
	FindOrCreateRoom(ctx context.Context, userID int64, levelTag, subject, mode string) (*types.Room, error)

	GetRoom(ctx context.Context, roomID int64) (*types.Room, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// MessagePublisher is the realtime side of a room: subscribe a connection,
// publish a chat line.
type MessagePublisher interface {
	Subscribe(ctx context.Context, conn Connection, roomID int64) error
	Publish(ctx context.Context, userID, roomID int64, text string) (*types.Message, error)
}

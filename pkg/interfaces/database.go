package interfaces

import (
	"context"

	"growtive/pkg/types"
)

// RoomTx is the set of room operations that run inside one atomic unit. All
// calls made through a RoomTx commit together or not at all.
type RoomTx interface {
	// InsertRoom stores room and sets its ID.
	InsertRoom(room *types.Room) error

	// ListWaitingRooms returns waiting rooms for the key in creation order.
	ListWaitingRooms(levelTag, subject, mode string) ([]*types.Room, error)

	CountMembers(roomID int64) (int, error)
	HasMember(roomID, userID int64) (bool, error)
	InsertMembership(roomID, userID int64) error
	UpdateRoomStatus(roomID int64, status string) error
}

// RoomStore persists rooms and memberships.
type RoomStore interface {
	// WithRoomTx runs fn as one serialized write transaction. An error from
	// fn rolls everything back.
	WithRoomTx(ctx context.Context, fn func(tx RoomTx) error) error

	GetRoom(ctx context.Context, roomID int64) (*types.Room, error)
	ListMembers(ctx context.Context, roomID int64) ([]*types.Membership, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	// InsertMessage stores msg and sets its ID. The row is durable when it
	// returns nil.
	InsertMessage(ctx context.Context, msg *types.Message) error

	// ListMessages returns the room history in ascending time order.
	ListMessages(ctx context.Context, roomID int64) ([]*types.Message, error)
}

// UserStore persists accounts and their counters.
type UserStore interface {
	CreateUser(ctx context.Context, user *types.User) error
	GetUserByID(ctx context.Context, userID int64) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	// UpdateUser loads the user, applies fn and writes the result back in one
	// write transaction. Returning an error from fn aborts the update.
	UpdateUser(ctx context.Context, userID int64, fn func(u *types.User) error) (*types.User, error)

	// TopUsers returns up to limit users ordered by XP descending.
	TopUsers(ctx context.Context, limit int) ([]*types.User, error)
}

// MaterialStore persists the content library with bookmarks and notes.
type MaterialStore interface {
	CreateMaterial(ctx context.Context, m *types.Material) error
	GetMaterial(ctx context.Context, materialID int64) (*types.Material, error)
	ListMaterials(ctx context.Context, filter types.MaterialFilter) ([]*types.Material, error)

	// AddBookmark is idempotent per (user, material).
	AddBookmark(ctx context.Context, userID, materialID int64) (*types.Bookmark, error)
	IsBookmarked(ctx context.Context, userID, materialID int64) (bool, error)

	AddNote(ctx context.Context, note *types.Note) error
	ListNotes(ctx context.Context, userID, materialID int64) ([]*types.Note, error)
}

// PaymentStore records mock plan purchases.
type PaymentStore interface {
	// RecordUpgrade stores txn and flags the user as premium atomically.
	RecordUpgrade(ctx context.Context, txn *types.Transaction) error
	ListTransactions(ctx context.Context, userID int64) ([]*types.Transaction, error)
}

// DatabaseManager is the full persistence collaborator.
type DatabaseManager interface {
	RoomStore
	MessageStore
	UserStore
	MaterialStore
	PaymentStore

	HealthCheck(ctx context.Context) error
	Close() error
}

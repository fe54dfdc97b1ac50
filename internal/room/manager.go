// Package room matches users into study rooms.
package room

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

var _ interfaces.RoomMatcher = (*Manager)(nil)

// Store is the persistence the matcher needs.
type Store interface {
	interfaces.RoomStore
	interfaces.MessageStore
}

// Manager finds or creates rooms and answers room lookups.
type Manager struct {
	store Store
	now   func() time.Time
	log   *logrus.Entry
}

// NewManager creates a new room manager
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logrus.WithField("component", "room"),
	}
}

// Detail is a room with its members and chat history.
type Detail struct {
	Room     *types.Room         `json:"room"`
	Members  []*types.Membership `json:"members"`
	Messages []*types.Message    `json:"messages"`
}

// FindOrCreateRoom places userID in the earliest-created waiting room that
// matches the key and has space, or in a new waiting room. Check, insert and
// status flip happen in one write transaction, so concurrent callers for the
// same key never overrun a room. A user already waiting in a matching room
// gets that room back unchanged.
func (m *Manager) FindOrCreateRoom(ctx context.Context, userID int64, levelTag, subject, mode string) (*types.Room, error) {
	capacity, ok := types.ModeCapacity(mode)
	if !ok {
		return nil, ErrInvalidMode
	}
	if levelTag == "" || subject == "" {
		return nil, ErrInvalidRoomKey
	}
	if userID <= 0 {
		return nil, ErrInvalidUser
	}

	var (
		matched *types.Room
		created bool
	)
	err := m.store.WithRoomTx(ctx, func(tx interfaces.RoomTx) error {
		matched, created = nil, false

		rooms, err := tx.ListWaitingRooms(levelTag, subject, mode)
		if err != nil {
			return err
		}

		for _, room := range rooms {
			member, err := tx.HasMember(room.ID, userID)
			if err != nil {
				return err
			}
			if member {
				matched = room
				return nil
			}

			count, err := tx.CountMembers(room.ID)
			if err != nil {
				return err
			}
			if count >= capacity {
				continue
			}

			if err := tx.InsertMembership(room.ID, userID); err != nil {
				return err
			}
			if count+1 >= capacity {
				if err := tx.UpdateRoomStatus(room.ID, types.RoomStatusActive); err != nil {
					return err
				}
				room.Status = types.RoomStatusActive
			}
			matched = room
			return nil
		}

		room := &types.Room{
			LevelTag:  levelTag,
			Subject:   subject,
			Mode:      mode,
			Status:    types.RoomStatusWaiting,
			CreatedAt: m.now(),
		}
		if err := tx.InsertRoom(room); err != nil {
			return err
		}
		if err := tx.InsertMembership(room.ID, userID); err != nil {
			return err
		}
		matched, created = room, true
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "find or create room")
	}

	m.log.WithFields(logrus.Fields{
		"room_id": matched.ID,
		"user_id": userID,
		"mode":    mode,
		"status":  matched.Status,
		"created": created,
	}).Info("room matched")
	return matched, nil
}

// GetRoom retrieves a room by ID
func (m *Manager) GetRoom(ctx context.Context, roomID int64) (*types.Room, error) {
	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (m *Manager) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	return m.store.IsMember(ctx, roomID, userID)
}

// RoomDetail loads a room with its members and full message history.
func (m *Manager) RoomDetail(ctx context.Context, roomID int64) (*Detail, error) {
	room, err := m.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	members, err := m.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	messages, err := m.store.ListMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []*types.Membership{}
	}
	if messages == nil {
		messages = []*types.Message{}
	}
	return &Detail{Room: room, Members: members, Messages: messages}, nil
}

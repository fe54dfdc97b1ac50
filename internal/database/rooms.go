package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

// roomTx implements interfaces.RoomTx over one write transaction.
type roomTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (r *roomTx) InsertRoom(room *types.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	res, err := r.tx.ExecContext(r.ctx,
		`INSERT INTO rooms (level_tag, subject, mode, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		room.LevelTag, room.Subject, room.Mode, room.Status, room.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert room")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "insert room id")
	}
	room.ID = id
	return nil
}

func (r *roomTx) ListWaitingRooms(levelTag, subject, mode string) ([]*types.Room, error) {
	var rooms []*types.Room
	err := r.tx.SelectContext(r.ctx, &rooms, `
		SELECT id, level_tag, subject, mode, status, created_at
		FROM rooms
		WHERE level_tag = ? AND subject = ? AND mode = ? AND status = ?
		ORDER BY created_at ASC, id ASC`,
		levelTag, subject, mode, types.RoomStatusWaiting)
	if err != nil {
		return nil, errors.Wrap(err, "list waiting rooms")
	}
	return rooms, nil
}

func (r *roomTx) CountMembers(roomID int64) (int, error) {
	var n int
	if err := r.tx.GetContext(r.ctx, &n, `SELECT COUNT(*) FROM room_members WHERE room_id = ?`, roomID); err != nil {
		return 0, errors.Wrap(err, "count members")
	}
	return n, nil
}

func (r *roomTx) HasMember(roomID, userID int64) (bool, error) {
	var n int
	err := r.tx.GetContext(r.ctx, &n,
		`SELECT COUNT(*) FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return false, errors.Wrap(err, "check membership")
	}
	return n > 0, nil
}

func (r *roomTx) InsertMembership(roomID, userID int64) error {
	_, err := r.tx.ExecContext(r.ctx,
		`INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)`,
		roomID, userID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return interfaces.ErrAlreadyExists
		}
		return errors.Wrap(err, "insert membership")
	}
	return nil
}

func (r *roomTx) UpdateRoomStatus(roomID int64, status string) error {
	res, err := r.tx.ExecContext(r.ctx, `UPDATE rooms SET status = ? WHERE id = ?`, status, roomID)
	if err != nil {
		return errors.Wrap(err, "update room status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// WithRoomTx runs fn on the single writer inside one transaction.
func (m *Manager) WithRoomTx(ctx context.Context, fn func(tx interfaces.RoomTx) error) error {
	return m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		return fn(&roomTx{ctx: ctx, tx: tx})
	})
}

// GetRoom retrieves a room by ID
func (m *Manager) GetRoom(ctx context.Context, roomID int64) (*types.Room, error) {
	var room types.Room
	err := m.db.GetContext(ctx, &room,
		`SELECT id, level_tag, subject, mode, status, created_at FROM rooms WHERE id = ?`, roomID)
	if err != nil {
		return nil, errors.Wrapf(notFound(err), "get room %d", roomID)
	}
	return &room, nil
}

// ListMembers returns memberships with user names in join order.
func (m *Manager) ListMembers(ctx context.Context, roomID int64) ([]*types.Membership, error) {
	var members []*types.Membership
	err := m.db.SelectContext(ctx, &members, `
		SELECT rm.id, rm.room_id, rm.user_id, u.name AS user_name, rm.joined_at
		FROM room_members rm
		JOIN users u ON u.id = rm.user_id
		WHERE rm.room_id = ?
		ORDER BY rm.joined_at ASC, rm.id ASC`, roomID)
	if err != nil {
		return nil, errors.Wrap(err, "list members")
	}
	return members, nil
}

func (m *Manager) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var n int
	err := m.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return false, errors.Wrap(err, "check membership")
	}
	return n > 0, nil
}

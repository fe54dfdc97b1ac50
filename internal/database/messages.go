package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"growtive/pkg/types"
)

// InsertMessage stores msg and sets its ID. Returning nil means the row has
// been committed.
func (m *Manager) InsertMessage(ctx context.Context, msg *types.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (room_id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
			msg.RoomID, msg.UserID, msg.Content, msg.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert message")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "insert message id")
		}
		msg.ID = id
		return nil
	})
}

// ListMessages returns the room history oldest first with author names.
func (m *Manager) ListMessages(ctx context.Context, roomID int64) ([]*types.Message, error) {
	var messages []*types.Message
	err := m.db.SelectContext(ctx, &messages, `
		SELECT msg.id, msg.room_id, msg.user_id, u.name AS user_name, msg.content, msg.created_at
		FROM messages msg
		JOIN users u ON u.id = msg.user_id
		WHERE msg.room_id = ?
		ORDER BY msg.created_at ASC, msg.id ASC`, roomID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return messages, nil
}

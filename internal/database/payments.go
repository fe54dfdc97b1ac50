package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

// RecordUpgrade stores a paid transaction and marks the buyer premium in the
// same write transaction.
func (m *Manager) RecordUpgrade(ctx context.Context, txn *types.Transaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	return m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET is_premium = 1 WHERE id = ?`, txn.UserID)
		if err != nil {
			return errors.Wrap(err, "flag premium")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.Wrapf(interfaces.ErrNotFound, "user %d", txn.UserID)
		}

		res, err = tx.NamedExecContext(ctx, `
			INSERT INTO transactions (user_id, plan, amount, status, created_at)
			VALUES (:user_id, :plan, :amount, :status, :created_at)`, txn)
		if err != nil {
			return errors.Wrap(err, "insert transaction")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "insert transaction id")
		}
		txn.ID = id
		return nil
	})
}

func (m *Manager) ListTransactions(ctx context.Context, userID int64) ([]*types.Transaction, error) {
	var txns []*types.Transaction
	err := m.db.SelectContext(ctx, &txns, `
		SELECT id, user_id, plan, amount, status, created_at
		FROM transactions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	return txns, nil
}

package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

const userColumns = `id, name, email, password_hash, level_tag, xp, level, coins,
	is_premium, streak_days, last_login_date, created_at`

// CreateUser stores a new account. A taken email yields
// interfaces.ErrAlreadyExists.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Level == 0 {
		user.Level = 1
	}
	return m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO users (name, email, password_hash, level_tag, xp, level, coins,
				is_premium, streak_days, last_login_date, created_at)
			VALUES (:name, :email, :password_hash, :level_tag, :xp, :level, :coins,
				:is_premium, :streak_days, :last_login_date, :created_at)`, user)
		if err != nil {
			if isUniqueViolation(err) {
				return interfaces.ErrAlreadyExists
			}
			return errors.Wrap(err, "insert user")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "insert user id")
		}
		user.ID = id
		return nil
	})
}

func (m *Manager) GetUserByID(ctx context.Context, userID int64) (*types.User, error) {
	var u types.User
	if err := m.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID); err != nil {
		return nil, errors.Wrapf(notFound(err), "get user %d", userID)
	}
	return &u, nil
}

func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	var u types.User
	if err := m.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, errors.Wrap(notFound(err), "get user by email")
	}
	return &u, nil
}

// UpdateUser reads, mutates and writes back a user inside one write
// transaction so concurrent awards never overwrite each other.
func (m *Manager) UpdateUser(ctx context.Context, userID int64, fn func(u *types.User) error) (*types.User, error) {
	var updated types.User
	err := m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &updated, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID); err != nil {
			return errors.Wrapf(notFound(err), "load user %d", userID)
		}
		if err := fn(&updated); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
			UPDATE users SET
				name = :name,
				level_tag = :level_tag,
				xp = :xp,
				level = :level,
				coins = :coins,
				is_premium = :is_premium,
				streak_days = :streak_days,
				last_login_date = :last_login_date
			WHERE id = :id`, &updated)
		if err != nil {
			return errors.Wrap(err, "update user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// TopUsers returns the leaderboard.
func (m *Manager) TopUsers(ctx context.Context, limit int) ([]*types.User, error) {
	var users []*types.User
	err := m.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY xp DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top users")
	}
	return users, nil
}

package database

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"growtive/pkg/types"
)

const materialColumns = `id, level_tag, grade, subject, topic, title, description, video_url, is_premium, created_at`

func (m *Manager) CreateMaterial(ctx context.Context, mat *types.Material) error {
	if mat.CreatedAt.IsZero() {
		mat.CreatedAt = time.Now().UTC()
	}
	return m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO materials (level_tag, grade, subject, topic, title, description, video_url, is_premium, created_at)
			VALUES (:level_tag, :grade, :subject, :topic, :title, :description, :video_url, :is_premium, :created_at)`, mat)
		if err != nil {
			return errors.Wrap(err, "insert material")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "insert material id")
		}
		mat.ID = id
		return nil
	})
}

func (m *Manager) GetMaterial(ctx context.Context, materialID int64) (*types.Material, error) {
	var mat types.Material
	err := m.db.GetContext(ctx, &mat, `SELECT `+materialColumns+` FROM materials WHERE id = ?`, materialID)
	if err != nil {
		return nil, errors.Wrapf(notFound(err), "get material %d", materialID)
	}
	return &mat, nil
}

// ListMaterials applies the non-empty fields of filter as equality matches.
func (m *Manager) ListMaterials(ctx context.Context, filter types.MaterialFilter) ([]*types.Material, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.LevelTag != "" {
		where = append(where, "level_tag = ?")
		args = append(args, filter.LevelTag)
	}
	if filter.Grade != "" {
		where = append(where, "grade = ?")
		args = append(args, filter.Grade)
	}
	if filter.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, filter.Subject)
	}

	query := `SELECT ` + materialColumns + ` FROM materials`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY grade ASC, subject ASC, id ASC`

	var materials []*types.Material
	if err := m.db.SelectContext(ctx, &materials, query, args...); err != nil {
		return nil, errors.Wrap(err, "list materials")
	}
	return materials, nil
}

// AddBookmark returns the existing bookmark when the pair is already saved.
func (m *Manager) AddBookmark(ctx context.Context, userID, materialID int64) (*types.Bookmark, error) {
	var b types.Bookmark
	err := m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_bookmarks (user_id, material_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, material_id) DO NOTHING`,
			userID, materialID, time.Now().UTC())
		if err != nil {
			return errors.Wrap(err, "insert bookmark")
		}
		err = tx.GetContext(ctx, &b, `
			SELECT id, user_id, material_id, created_at FROM user_bookmarks
			WHERE user_id = ? AND material_id = ?`, userID, materialID)
		return errors.Wrap(err, "load bookmark")
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *Manager) IsBookmarked(ctx context.Context, userID, materialID int64) (bool, error) {
	var n int
	err := m.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM user_bookmarks WHERE user_id = ? AND material_id = ?`, userID, materialID)
	if err != nil {
		return false, errors.Wrap(err, "check bookmark")
	}
	return n > 0, nil
}

func (m *Manager) AddNote(ctx context.Context, note *types.Note) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	return m.executeWrite(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO user_notes (user_id, material_id, content, created_at) VALUES (?, ?, ?, ?)`,
			note.UserID, note.MaterialID, note.Content, note.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert note")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "insert note id")
		}
		note.ID = id
		return nil
	})
}

// ListNotes returns a user's notes on a material, newest first.
func (m *Manager) ListNotes(ctx context.Context, userID, materialID int64) ([]*types.Note, error) {
	var notes []*types.Note
	err := m.db.SelectContext(ctx, &notes, `
		SELECT id, user_id, material_id, content, created_at
		FROM user_notes
		WHERE user_id = ? AND material_id = ?
		ORDER BY created_at DESC, id DESC`, userID, materialID)
	if err != nil {
		return nil, errors.Wrap(err, "list notes")
	}
	return notes, nil
}

// Package library serves study materials with the premium lock, completion
// rewards, bookmarks and notes.
package library

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/internal/rewards"
	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

// Store is the persistence the library needs.
type Store interface {
	interfaces.MaterialStore
	GetUserByID(ctx context.Context, userID int64) (*types.User, error)
	UpdateUser(ctx context.Context, userID int64, fn func(u *types.User) error) (*types.User, error)
}

// Detail is a material as seen by one user. Bookmarked and Notes are only
// filled when the material is unlocked.
type Detail struct {
	Material   *types.Material `json:"material"`
	Locked     bool            `json:"locked"`
	Bookmarked bool            `json:"bookmarked"`
	Notes      []*types.Note   `json:"notes"`
}

type Service struct {
	store Store
	log   *logrus.Entry
}

func NewService(store Store) *Service {
	return &Service{store: store, log: logrus.WithField("component", "library")}
}

// List returns materials matching filter. An empty level tag falls back to
// the user's own.
func (s *Service) List(ctx context.Context, userID int64, filter types.MaterialFilter) ([]*types.Material, error) {
	filter.LevelTag = strings.TrimSpace(filter.LevelTag)
	filter.Grade = strings.TrimSpace(filter.Grade)
	filter.Subject = strings.TrimSpace(filter.Subject)

	if filter.LevelTag == "" {
		user, err := s.user(ctx, userID)
		if err != nil {
			return nil, err
		}
		filter.LevelTag = user.LevelTag
	}
	materials, err := s.store.ListMaterials(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list materials")
	}
	return materials, nil
}

// Get returns the material with the user's lock state, bookmark and notes.
func (s *Service) Get(ctx context.Context, userID, materialID int64) (*Detail, error) {
	user, mat, err := s.load(ctx, userID, materialID)
	if err != nil {
		return nil, err
	}
	d := &Detail{Material: mat, Locked: locked(user, mat)}
	if d.Locked {
		return d, nil
	}

	if d.Bookmarked, err = s.store.IsBookmarked(ctx, userID, materialID); err != nil {
		return nil, errors.Wrap(err, "check bookmark")
	}
	if d.Notes, err = s.store.ListNotes(ctx, userID, materialID); err != nil {
		return nil, errors.Wrap(err, "list notes")
	}
	return d, nil
}

// Complete grants the completion reward. Locked materials are refused.
func (s *Service) Complete(ctx context.Context, userID, materialID int64) (*types.User, error) {
	if _, err := s.unlocked(ctx, userID, materialID); err != nil {
		return nil, err
	}
	user, err := s.store.UpdateUser(ctx, userID, func(u *types.User) error {
		rewards.AwardMaterialCompletion(u)
		return nil
	})
	if err != nil {
		return nil, s.mapUser(err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"material_id": materialID,
		"xp":          user.XP,
		"level":       user.Level,
	}).Info("material completed")
	return user, nil
}

// Bookmark saves the material for the user. Repeating it is a no-op.
func (s *Service) Bookmark(ctx context.Context, userID, materialID int64) (*types.Bookmark, error) {
	if _, err := s.unlocked(ctx, userID, materialID); err != nil {
		return nil, err
	}
	b, err := s.store.AddBookmark(ctx, userID, materialID)
	if err != nil {
		return nil, errors.Wrap(err, "bookmark")
	}
	return b, nil
}

func (s *Service) AddNote(ctx context.Context, userID, materialID int64, content string) (*types.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyNote
	}
	if _, err := s.unlocked(ctx, userID, materialID); err != nil {
		return nil, err
	}
	note := &types.Note{UserID: userID, MaterialID: materialID, Content: content}
	if err := s.store.AddNote(ctx, note); err != nil {
		return nil, errors.Wrap(err, "add note")
	}
	return note, nil
}

func (s *Service) unlocked(ctx context.Context, userID, materialID int64) (*types.Material, error) {
	user, mat, err := s.load(ctx, userID, materialID)
	if err != nil {
		return nil, err
	}
	if locked(user, mat) {
		return nil, ErrPremiumRequired
	}
	return mat, nil
}

func (s *Service) load(ctx context.Context, userID, materialID int64) (*types.User, *types.Material, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	mat, err := s.store.GetMaterial(ctx, materialID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, ErrMaterialNotFound
		}
		return nil, nil, errors.Wrap(err, "load material")
	}
	return user, mat, nil
}

func (s *Service) user(ctx context.Context, userID int64) (*types.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, s.mapUser(err)
	}
	return user, nil
}

func (s *Service) mapUser(err error) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func locked(u *types.User, m *types.Material) bool {
	return m.IsPremium && !u.IsPremium
}

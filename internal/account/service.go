// Package account handles registration, login, profiles, the leaderboard,
// study session rewards and plan upgrades.
package account

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/internal/auth"
	"growtive/internal/rewards"
	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 50
)

// Store is the persistence the account service needs.
type Store interface {
	interfaces.UserStore
	interfaces.PaymentStore
	GetRoom(ctx context.Context, roomID int64) (*types.Room, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID int64, name string) (string, error)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token      string      `json:"token"`
	User       *types.User `json:"user"`
	LoginBonus bool        `json:"login_bonus"`
}

// Service implements the account operations.
type Service struct {
	store      Store
	tokens     TokenIssuer
	bcryptCost int
	now        func() time.Time
	log        *logrus.Entry
}

// NewService creates the account service. A bcryptCost of zero uses the
// bcrypt default.
func NewService(store Store, tokens TokenIssuer, bcryptCost int) *Service {
	return &Service{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logrus.WithField("component", "account"),
	}
}

// Register creates an account. The email is stored lower-cased.
func (s *Service) Register(ctx context.Context, req types.RegisterRequest) (*types.User, error) {
	req.Normalize()
	logCtx := s.log.WithField("email", req.Email)

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &types.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		LevelTag:     req.LevelTag,
		Level:        1,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, interfaces.ErrAlreadyExists) {
			logCtx.Info("registration with taken email")
			return nil, ErrEmailExists
		}
		return nil, errors.Wrap(err, "create user")
	}

	logCtx.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Login checks the password, applies the daily login bonus and issues a
// token. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, req types.LoginRequest) (*LoginResult, error) {
	req.Normalize()
	logCtx := s.log.WithField("email", req.Email)

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			logCtx.Info("login for unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "load user")
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		logCtx.Info("login with wrong password")
		return nil, ErrInvalidCredentials
	}

	var bonus bool
	today := s.now()
	user, err = s.store.UpdateUser(ctx, user.ID, func(u *types.User) error {
		bonus = rewards.AwardLogin(u, today)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "apply login bonus")
	}

	token, err := s.tokens.Issue(user.ID, user.Name)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}

	logCtx.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"login_bonus": bonus,
		"streak_days": user.StreakDays,
	}).Info("user logged in")
	return &LoginResult{Token: token, User: user, LoginBonus: bonus}, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (*types.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, s.mapUser(err)
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req types.UpdateProfileRequest) (*types.User, error) {
	req.Normalize()
	user, err := s.store.UpdateUser(ctx, userID, func(u *types.User) error {
		u.Name = req.Name
		u.LevelTag = req.LevelTag
		return nil
	})
	if err != nil {
		return nil, s.mapUser(err)
	}
	return user, nil
}

// Leaderboard returns the top users by XP. limit is clamped to [1, 50] and
// defaults to 10.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*types.User, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	users, err := s.store.TopUsers(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "leaderboard")
	}
	return users, nil
}

// CompleteStudySession grants the study session reward for a room that
// exists. It may be claimed repeatedly.
func (s *Service) CompleteStudySession(ctx context.Context, userID, roomID int64) (*types.User, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, errors.Wrap(err, "load room")
	}
	user, err := s.store.UpdateUser(ctx, userID, func(u *types.User) error {
		rewards.AwardStudySession(u)
		return nil
	})
	if err != nil {
		return nil, s.mapUser(err)
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID, "xp": user.XP}).Info("study session completed")
	return user, nil
}

// Plans returns a copy of the upgrade catalog.
func (s *Service) Plans() []types.Plan {
	return append([]types.Plan(nil), types.Plans...)
}

// Transactions lists the user's upgrade transactions, newest first.
func (s *Service) Transactions(ctx context.Context, userID int64) ([]*types.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	if txns == nil {
		txns = []*types.Transaction{}
	}
	return txns, nil
}

// Upgrade records a paid transaction for plan and marks the user premium.
func (s *Service) Upgrade(ctx context.Context, userID int64, planCode string) (*types.Transaction, error) {
	plan, ok := types.LookupPlan(planCode)
	if !ok {
		return nil, types.ErrUnknownPlan
	}
	txn := &types.Transaction{
		UserID:    userID,
		Plan:      plan.Code,
		Amount:    plan.Amount,
		Status:    types.TransactionStatusPaid,
		CreatedAt: s.now(),
	}
	if err := s.store.RecordUpgrade(ctx, txn); err != nil {
		return nil, s.mapUser(err)
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "plan": plan.Code, "amount": plan.Amount}).Info("plan upgraded")
	return txn, nil
}

func (s *Service) mapUser(err error) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

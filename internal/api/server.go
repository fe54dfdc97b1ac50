// Package api exposes the REST API and mounts the websocket endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/internal/account"
	"growtive/internal/library"
	"growtive/internal/room"
	"growtive/pkg/types"
)

// AccountService is the account surface used by the handlers.
type AccountService interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.User, error)
	Login(ctx context.Context, req types.LoginRequest) (*account.LoginResult, error)
	Profile(ctx context.Context, userID int64) (*types.User, error)
	UpdateProfile(ctx context.Context, userID int64, req types.UpdateProfileRequest) (*types.User, error)
	Leaderboard(ctx context.Context, limit int) ([]*types.User, error)
	CompleteStudySession(ctx context.Context, userID, roomID int64) (*types.User, error)
	Plans() []types.Plan
	Upgrade(ctx context.Context, userID int64, planCode string) (*types.Transaction, error)
	Transactions(ctx context.Context, userID int64) ([]*types.Transaction, error)
}

// LibraryService is the material surface used by the handlers.
type LibraryService interface {
	List(ctx context.Context, userID int64, filter types.MaterialFilter) ([]*types.Material, error)
	Get(ctx context.Context, userID, materialID int64) (*library.Detail, error)
	Complete(ctx context.Context, userID, materialID int64) (*types.User, error)
	Bookmark(ctx context.Context, userID, materialID int64) (*types.Bookmark, error)
	AddNote(ctx context.Context, userID, materialID int64, content string) (*types.Note, error)
}

// RoomService is the room matcher surface used by the handlers.
type RoomService interface {
	FindOrCreateRoom(ctx context.Context, userID int64, levelTag, subject, mode string) (*types.Room, error)
	RoomDetail(ctx context.Context, roomID int64) (*room.Detail, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsProvider reports realtime subscription counts.
type StatsProvider interface {
	GetStats() map[string]int
}

// Options wires the server to its collaborators.
type Options struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
	Debug        bool

	// DisableRequestLogs silences per-request logging, mostly for tests.
	DisableRequestLogs bool

	Auth      Authenticator
	Accounts  AccountService
	Library   LibraryService
	Rooms     RoomService
	Health    HealthChecker
	Stats     StatsProvider
	WebSocket http.Handler
}

// Server is the echo application.
type Server struct {
	opts      *Options
	app       *echo.Echo
	validator *Validator
	log       *logrus.Entry
}

func NewServer(opts *Options) *Server {
	s := &Server{
		opts:      opts,
		app:       echo.New(),
		validator: NewValidator(),
		log:       logrus.WithField("component", "api"),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Debug = s.opts.Debug
	s.app.Validator = s.validator
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.validator)

	s.app.Server.ReadTimeout = s.opts.ReadTimeout
	s.app.Server.WriteTimeout = s.opts.WriteTimeout
	s.app.Server.IdleTimeout = s.opts.IdleTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableRequestLogs {
		s.app.Use(requestLogger())
	}
	s.app.Use(middleware.Recover())

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		MaxAge:       86400,
	}))

	s.app.GET("/health", s.health)
	if s.opts.WebSocket != nil {
		s.app.GET("/ws", echo.WrapHandler(s.opts.WebSocket))
	}

	v1 := s.app.Group("/v1")
	authed := requireAuth(s.opts.Auth)

	registerAccountAPI(v1, authed, s.opts.Accounts)
	registerLibraryAPI(v1, authed, s.opts.Library)
	registerRoomAPI(v1, authed, s.opts.Rooms, s.opts.Accounts)
}

// Start blocks serving on opts.Address until Stop is called.
func (s *Server) Start() error {
	s.log.WithField("address", s.opts.Address).Info("http server listening")
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Database  string         `json:"database"`
	Realtime  map[string]int `json:"realtime,omitempty"`
}

func (s *Server) health(ctx echo.Context) error {
	c, cancel := context.WithTimeout(ctx.Request().Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Database: "healthy", Timestamp: time.Now().UTC()}
	code := http.StatusOK
	if err := s.opts.Health.HealthCheck(c); err != nil {
		s.log.WithError(err).Warn("health check failed")
		resp.Status, resp.Database = "unhealthy", "unreachable"
		code = http.StatusServiceUnavailable
	}
	if s.opts.Stats != nil {
		resp.Realtime = s.opts.Stats.GetStats()
	}
	return ctx.JSON(code, resp)
}

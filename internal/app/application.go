// Package app wires storage, the realtime pipeline and the HTTP surface into
// one runnable service.
package app

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"growtive/internal/account"
	"growtive/internal/api"
	"growtive/internal/auth"
	"growtive/internal/broadcast"
	"growtive/internal/config"
	"growtive/internal/database"
	"growtive/internal/hub"
	"growtive/internal/library"
	"growtive/internal/pubsub"
	"growtive/internal/room"
	"growtive/internal/websocket"
	"growtive/pkg/interfaces"
)

// Application owns every long-lived component.
//
// Startup order: database, token manager, registry (optionally bridged over
// Redis), broadcaster, hub, websocket handler, API server. Stop runs in
// reverse.
type Application struct {
	config *config.Config

	db       *database.Manager
	tokens   *auth.TokenManager
	registry *websocket.Registry
	bridge   *pubsub.RedisChannel
	redis    *redis.Client
	hub      *hub.Hub
	server   *api.Server

	log *logrus.Entry
}

// NewApplication opens the database, applies migrations and builds the
// component graph. Nothing listens until Start.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	a := &Application{config: cfg, log: logrus.WithField("component", "app")}

	db, err := database.NewManager(cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "initialize database")
	}
	a.db = db

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialize token manager")
	}
	a.tokens = tokens

	a.registry = websocket.NewRegistry()
	var channel interfaces.Channel = a.registry
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.bridge = pubsub.NewRedisChannel(a.registry, a.redis, cfg.Redis.ChannelPrefix)
		channel = a.bridge
	}

	rooms := room.NewManager(db)
	broadcaster := broadcast.NewBroadcaster(channel, db, broadcast.Options{
		RateLimit:         cfg.Chat.RateLimitPerMinute,
		RequireMembership: cfg.Chat.RequireMembership,
	})
	a.hub = hub.NewHub(broadcaster, channel, 0)

	ws := websocket.NewHandler(tokens, a.hub, websocket.HandlerConfig{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		SendBuffer:      cfg.WebSocket.SendBuffer,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		PingInterval:    cfg.WebSocket.PingInterval,
		ReadTimeout:     cfg.WebSocket.ReadTimeout,
		MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
	})

	a.server = api.NewServer(&api.Options{
		Address:      cfg.HTTP.Address(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		Debug:        cfg.HTTP.Debug,
		Auth:         tokens,
		Accounts:     account.NewService(db, tokens, cfg.Auth.BcryptCost),
		Library:      library.NewService(db),
		Rooms:        rooms,
		Health:       db,
		Stats:        a.registry,
		WebSocket:    ws,
	})
	return a, nil
}

// Start launches the background components. It does not serve HTTP; call
// Serve for that, or mount Handler on a test server.
func (a *Application) Start(ctx context.Context) error {
	if a.bridge != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return errors.Wrapf(err, "connect to redis at %s", a.config.Redis.Addr)
		}
		if err := a.bridge.Start(ctx); err != nil {
			return errors.Wrap(err, "start redis bridge")
		}
		a.log.WithField("addr", a.config.Redis.Addr).Info("redis bridge started")
	}
	if err := a.hub.Start(ctx); err != nil {
		return errors.Wrap(err, "start hub")
	}
	return nil
}

// Serve blocks on the HTTP listener until Stop.
func (a *Application) Serve() error {
	return a.server.Start()
}

// Stop shuts the service down in reverse startup order. It returns the
// first error encountered but always attempts every step.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("shutting down")
	var first error
	keep := func(err error, what string) {
		if err == nil {
			return
		}
		a.log.WithError(err).Warnf("%s shutdown", what)
		if first == nil {
			first = errors.Wrap(err, what)
		}
	}

	keep(a.server.Stop(ctx), "http server")
	if err := a.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		keep(err, "hub")
	}
	if a.bridge != nil {
		keep(a.bridge.Close(), "redis bridge")
		keep(a.redis.Close(), "redis client")
	}
	keep(a.db.Close(), "database")

	a.log.Info("shutdown complete")
	return first
}

// Handler exposes the full HTTP surface, including /ws.
func (a *Application) Handler() http.Handler {
	return a.server
}

// Addr is the configured listen address.
func (a *Application) Addr() string {
	return a.config.HTTP.Address()
}

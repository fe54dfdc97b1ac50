package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

// Authenticator resolves an access token to the user behind it.
type Authenticator interface {
	Authenticate(token string) (userID int64, userName string, err error)
}

// EventSink receives decoded client events and disconnect notices.
type EventSink interface {
	Submit(conn interfaces.Connection, event types.InboundEvent) error
	Disconnect(conn interfaces.Connection)
}

// HandlerConfig carries the socket tunables.
type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	ReadTimeout     time.Duration
	MaxMessageSize  int64
	AllowedOrigins  []string
}

// DefaultHandlerConfig returns a 30 second ping with a 60 second read deadline.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		SendBuffer:     defaultSendBuffer,
		WriteTimeout:   defaultWriteTimeout,
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Handler upgrades authenticated requests and pumps their frames into the sink.
type Handler struct {
	auth     Authenticator
	sink     EventSink
	cfg      HandlerConfig
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewHandler creates a WebSocket handler. Zero fields of cfg take the
// DefaultHandlerConfig values.
func NewHandler(auth Authenticator, sink EventSink, cfg HandlerConfig) *Handler {
	def := DefaultHandlerConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	h := &Handler{
		auth: auth,
		sink: sink,
		cfg:  cfg,
		log:  logrus.WithField("component", "websocket"),
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// tokenFromRequest reads the token query parameter, then the bearer header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ServeHTTP authenticates before upgrading so that bad tokens get a plain 401.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}
	userID, userName, err := h.auth.Authenticate(token)
	if err != nil {
		h.log.WithError(err).Debug("websocket token rejected")
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := NewConnection(raw, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	if err := conn.SetCredentials(userID, userName); err != nil {
		h.log.WithError(err).Error("failed to set credentials")
		_ = conn.Close()
		return
	}

	h.log.WithFields(logrus.Fields{
		"connection_id": conn.GetID(),
		"user_id":       userID,
	}).Info("websocket connected")

	go h.pingLoop(conn)
	h.readLoop(conn)
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}

func (h *Handler) readLoop(conn *Connection) {
	logCtx := h.log.WithFields(logrus.Fields{
		"connection_id": conn.GetID(),
		"user_id":       conn.GetUserID(),
	})
	defer func() {
		// Closed first so a racing Join is refused before LeaveAll runs.
		_ = conn.Close()
		h.sink.Disconnect(conn)
		logCtx.Info("websocket disconnected")
	}()

	raw := conn.conn
	raw.SetReadLimit(h.cfg.MaxMessageSize)
	_ = raw.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logCtx.WithError(err).Debug("websocket read error")
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		if messageType != websocket.TextMessage {
			continue
		}

		var event types.InboundEvent
		if err := json.Unmarshal(data, &event); err != nil || event.Event == "" {
			logCtx.Debug("malformed frame ignored")
			continue
		}
		if err := h.sink.Submit(conn, event); err != nil {
			logCtx.WithError(err).Warn("event rejected")
			_ = conn.WriteJSON(types.ErrorEvent("server busy"))
		}
	}
}

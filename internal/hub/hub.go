// Package hub serializes realtime room events onto one dispatcher goroutine.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/internal/broadcast"
	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

const (
	defaultQueueSize    = 1000
	defaultEventTimeout = 10 * time.Second
)

// Hub receives client events from the websocket layer and dispatches them one
// at a time. Subscribe and Publish for every room run on the same goroutine,
// so a joining connection sees either a message in its history replay or as
// a live event, never both and never neither.
type Hub struct {
	publisher interfaces.MessagePublisher
	channel   interfaces.Channel

	events       chan *inbound
	shutdown     chan struct{}
	done         chan struct{}
	eventTimeout time.Duration

	running bool
	mu      sync.RWMutex
	log     *logrus.Entry
}

type inbound struct {
	conn  interfaces.Connection
	event types.InboundEvent
}

// NewHub creates a stopped hub. queueSize falls back to 1000 when zero.
func NewHub(publisher interfaces.MessagePublisher, channel interfaces.Channel, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		publisher:    publisher,
		channel:      channel,
		events:       make(chan *inbound, queueSize),
		eventTimeout: defaultEventTimeout,
		log:          logrus.WithField("component", "hub"),
	}
}

// Start launches the dispatcher. It stops when ctx is cancelled or Stop is
// called.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdown = make(chan struct{})
	h.done = make(chan struct{})

	h.log.Info("starting hub")
	go h.run(ctx, h.shutdown, h.done)
	return nil
}

// Stop signals the dispatcher and waits for the event in flight to finish.
// Events still queued are dropped.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdown)
	done := h.done
	h.mu.Unlock()

	<-done
	h.log.Info("hub stopped")
	return nil
}

// Submit queues event from conn. It never blocks.
func (h *Hub) Submit(conn interfaces.Connection, event types.InboundEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}

	select {
	case h.events <- &inbound{conn: conn, event: event}:
		return nil
	default:
		return ErrEventQueueFull
	}
}

// Disconnect drops every subscription conn holds.
func (h *Hub) Disconnect(conn interfaces.Connection) {
	h.channel.LeaveAll(conn)
}

func (h *Hub) run(ctx context.Context, shutdown, done chan struct{}) {
	defer close(done)
	for {
		select {
		case in := <-h.events:
			h.handleEvent(ctx, in)
		case <-shutdown:
			return
		case <-ctx.Done():
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) handleEvent(parent context.Context, in *inbound) {
	if in.conn == nil || in.conn.IsClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(parent, h.eventTimeout)
	defer cancel()

	logCtx := h.log.WithFields(logrus.Fields{
		"event":         in.event.Event,
		"connection_id": in.conn.GetID(),
		"user_id":       in.conn.GetUserID(),
	})

	err := h.dispatch(ctx, in)
	if err == nil {
		return
	}
	if errors.Is(err, ErrUnknownEvent) || errors.Is(err, types.ErrInvalidPayload) {
		logCtx.WithError(err).Debug("event ignored")
		return
	}
	logCtx.WithError(err).Warn("event failed")
	if werr := in.conn.WriteJSON(types.ErrorEvent(clientMessage(err))); werr != nil {
		logCtx.WithError(werr).Debug("error event not delivered")
	}
}

func (h *Hub) dispatch(ctx context.Context, in *inbound) error {
	switch in.event.Event {
	case types.EventJoin:
		var p types.JoinPayload
		if err := decode(in.event.Data, &p); err != nil {
			return err
		}
		return h.publisher.Subscribe(ctx, in.conn, p.RoomID)

	case types.EventSendMessage:
		var p types.SendMessagePayload
		if err := decode(in.event.Data, &p); err != nil {
			return err
		}
		_, err := h.publisher.Publish(ctx, in.conn.GetUserID(), p.RoomID, p.Message)
		return err

	default:
		return errors.Wrapf(ErrUnknownEvent, "%q", in.event.Event)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return types.ErrInvalidPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(types.ErrInvalidPayload, err.Error())
	}
	return nil
}

// clientMessage keeps internal failure details off the wire.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, broadcast.ErrRateLimitExceeded):
		return broadcast.ErrRateLimitExceeded.Error()
	case errors.Is(err, broadcast.ErrNotRoomMember):
		return broadcast.ErrNotRoomMember.Error()
	default:
		return "internal error"
	}
}

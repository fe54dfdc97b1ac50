// Package broadcast fans room chat out to subscribed connections.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

var _ interfaces.MessagePublisher = (*Broadcaster)(nil)

// Store is the persistence the broadcaster needs.
type Store interface {
	interfaces.MessageStore
	GetRoom(ctx context.Context, roomID int64) (*types.Room, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	GetUserByID(ctx context.Context, userID int64) (*types.User, error)
}

// Options tune a Broadcaster.
type Options struct {
	// RateLimit is the number of messages one user may publish per minute.
	RateLimit int
	// RequireMembership restricts Subscribe and Publish to room members.
	RequireMembership bool
}

// Broadcaster persists chat messages and delivers them to the room channel.
type Broadcaster struct {
	channel           interfaces.Channel
	store             Store
	limiter           *RateLimiter
	requireMembership bool
	now               func() time.Time
	log               *logrus.Entry
}

// NewBroadcaster creates a broadcaster publishing on channel.
func NewBroadcaster(channel interfaces.Channel, store Store, opts Options) *Broadcaster {
	return &Broadcaster{
		channel:           channel,
		store:             store,
		limiter:           NewRateLimiter(opts.RateLimit),
		requireMembership: opts.RequireMembership,
		now:               func() time.Time { return time.Now().UTC() },
		log:               logrus.WithField("component", "broadcast"),
	}
}

// ChannelKey names the broadcast channel of a room.
func ChannelKey(roomID int64) string {
	return fmt.Sprintf("room-%d", roomID)
}

// Subscribe joins conn to the room channel and replays the stored history to
// it, oldest first, followed by a history_complete notice. Unauthenticated
// connections and missing room ids are ignored. The connection joins before
// the history is read, so a message relayed from another instance in between
// can arrive both live and in the replay.
func (b *Broadcaster) Subscribe(ctx context.Context, conn interfaces.Connection, roomID int64) error {
	if conn == nil || !conn.IsAuthenticated() || roomID <= 0 {
		return nil
	}
	logCtx := b.log.WithFields(logrus.Fields{
		"room_id":       roomID,
		"user_id":       conn.GetUserID(),
		"connection_id": conn.GetID(),
	})

	if b.requireMembership {
		member, err := b.store.IsMember(ctx, roomID, conn.GetUserID())
		if err != nil {
			return errors.Wrap(err, "check membership")
		}
		if !member {
			return ErrNotRoomMember
		}
	}

	if err := b.channel.Join(conn, ChannelKey(roomID)); err != nil {
		return errors.Wrap(err, "join channel")
	}

	history, err := b.store.ListMessages(ctx, roomID)
	if err != nil {
		return errors.Wrap(err, "load history")
	}
	for _, msg := range history {
		if err := conn.WriteJSON(types.NewMessageEvent(msg)); err != nil {
			logCtx.WithError(err).Debug("history replay interrupted")
			return nil
		}
	}
	if err := conn.WriteJSON(types.HistoryCompleteEvent(roomID, len(history))); err != nil {
		logCtx.WithError(err).Debug("history complete not delivered")
	}

	logCtx.WithField("replayed", len(history)).Info("subscribed to room")
	return nil
}

// Publish stores text as a message in the room and broadcasts it once the
// write has committed. Blank text, a missing user or room id, or a room that
// does not exist make it a silent no-op returning nil, nil.
func (b *Broadcaster) Publish(ctx context.Context, userID, roomID int64, text string) (*types.Message, error) {
	text = strings.TrimSpace(text)
	if userID <= 0 || roomID <= 0 || text == "" {
		return nil, nil
	}
	logCtx := b.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	if _, err := b.store.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			logCtx.Debug("publish to unknown room ignored")
			return nil, nil
		}
		return nil, errors.Wrap(err, "load room")
	}

	if b.requireMembership {
		member, err := b.store.IsMember(ctx, roomID, userID)
		if err != nil {
			return nil, errors.Wrap(err, "check membership")
		}
		if !member {
			logCtx.Info("publish by non-member rejected")
			return nil, ErrNotRoomMember
		}
	}

	if !b.limiter.Allow(userID) {
		logCtx.Warn("publish rate limited")
		return nil, ErrRateLimitExceeded
	}

	author, err := b.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load author")
	}

	msg := &types.Message{
		RoomID:    roomID,
		UserID:    userID,
		UserName:  author.Name,
		Content:   text,
		CreatedAt: b.now(),
	}
	if err := b.store.InsertMessage(ctx, msg); err != nil {
		return nil, errors.Wrap(err, "persist message")
	}

	delivered := b.channel.Broadcast(ChannelKey(roomID), types.NewMessageEvent(msg))
	logCtx.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"delivered":  delivered,
	}).Debug("message published")
	return msg, nil
}

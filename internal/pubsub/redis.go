// Package pubsub relays room broadcasts between server instances over Redis.
package pubsub

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"growtive/pkg/interfaces"
)

var _ interfaces.Channel = (*RedisChannel)(nil)

// DefaultPrefix namespaces the Redis channels used for relaying.
const DefaultPrefix = "growtive:"

var ErrAlreadyStarted = errors.New("redis relay already started")

type envelope struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// RedisChannel delivers to the local channel first, then publishes the
// payload to Redis so that other instances deliver it to their own
// subscribers. Subscriptions stay local.
type RedisChannel struct {
	local  interfaces.Channel
	client *redis.Client
	prefix string
	origin string

	mu     sync.Mutex
	sub    *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logrus.Entry
}

// NewRedisChannel wraps local. An empty prefix uses DefaultPrefix.
func NewRedisChannel(local interfaces.Channel, client *redis.Client, prefix string) *RedisChannel {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisChannel{
		local:  local,
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
		log:    logrus.WithField("component", "pubsub"),
	}
}

// Start subscribes to every relayed channel and begins delivering remote
// payloads locally.
func (c *RedisChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return ErrAlreadyStarted
	}

	sub := c.client.PSubscribe(ctx, c.prefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrap(err, "subscribe to relay")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.sub = sub
	c.cancel = cancel
	c.wg.Add(1)
	go c.receive(runCtx, sub.Channel())

	c.log.WithField("pattern", c.prefix+"*").Info("redis relay started")
	return nil
}

func (c *RedisChannel) receive(ctx context.Context, msgs <-chan *redis.Message) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				c.log.WithError(err).Warn("dropping malformed relay payload")
				continue
			}
			if env.Origin == c.origin {
				continue
			}
			key := strings.TrimPrefix(msg.Channel, c.prefix)
			c.local.Broadcast(key, env.Payload)
		}
	}
}

func (c *RedisChannel) Join(conn interfaces.Connection, key string) error {
	return c.local.Join(conn, key)
}

func (c *RedisChannel) Leave(conn interfaces.Connection, key string) {
	c.local.Leave(conn, key)
}

func (c *RedisChannel) LeaveAll(conn interfaces.Connection) {
	c.local.LeaveAll(conn)
}

// Broadcast returns the local delivery count. Relay failures are logged and
// do not affect local subscribers.
func (c *RedisChannel) Broadcast(key string, payload interface{}) int {
	delivered := c.local.Broadcast(key, payload)

	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.WithError(err).Warn("payload not relayed")
		return delivered
	}
	data, err := json.Marshal(envelope{Origin: c.origin, Channel: key, Payload: raw})
	if err != nil {
		c.log.WithError(err).Warn("payload not relayed")
		return delivered
	}
	if err := c.client.Publish(context.Background(), c.prefix+key, data).Err(); err != nil {
		c.log.WithError(err).WithField("channel", key).Warn("relay publish failed")
	}
	return delivered
}

// Close stops the receive loop and releases the subscription.
func (c *RedisChannel) Close() error {
	c.mu.Lock()
	sub, cancel := c.sub, c.cancel
	c.sub, c.cancel = nil, nil
	c.mu.Unlock()

	if sub == nil {
		return nil
	}
	cancel()
	err := sub.Close()
	c.wg.Wait()
	return errors.Wrap(err, "close relay subscription")
}

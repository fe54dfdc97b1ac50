package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growtive/internal/broadcast"
	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

type testConn struct {
	id     string
	userID int64
	closed bool

	mu   sync.Mutex
	sent []types.OutboundEvent
}

func (c *testConn) GetID() string         { return c.id }
func (c *testConn) IsClosed() bool        { return c.closed }
func (c *testConn) GetUserID() int64      { return c.userID }
func (c *testConn) GetUserName() string   { return "tester" }
func (c *testConn) IsAuthenticated() bool { return true }
func (c *testConn) Close() error {
	c.closed = true
	return nil
}
func (c *testConn) SetCredentials(id int64, _ string) error {
	c.userID = id
	return nil
}
func (c *testConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v.(types.OutboundEvent))
	return nil
}

func (c *testConn) events() []types.OutboundEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.OutboundEvent(nil), c.sent...)
}

type call struct {
	kind   string
	userID int64
	roomID int64
	text   string
}

type fakePublisher struct {
	mu         sync.Mutex
	calls      []call
	publishErr error
}

func (p *fakePublisher) Subscribe(_ context.Context, conn interfaces.Connection, roomID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{kind: "subscribe", userID: conn.GetUserID(), roomID: roomID})
	return nil
}

func (p *fakePublisher) Publish(_ context.Context, userID, roomID int64, text string) (*types.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{kind: "publish", userID: userID, roomID: roomID, text: text})
	return nil, p.publishErr
}

func (p *fakePublisher) snapshot() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}

type leaveRecorder struct {
	mu   sync.Mutex
	left []string
}

func (l *leaveRecorder) Join(interfaces.Connection, string) error { return nil }
func (l *leaveRecorder) Leave(interfaces.Connection, string)      {}
func (l *leaveRecorder) Broadcast(string, interface{}) int        { return 0 }
func (l *leaveRecorder) LeaveAll(conn interfaces.Connection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.left = append(l.left, conn.GetID())
}

func event(t *testing.T, name string, data interface{}) types.InboundEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return types.InboundEvent{Event: name, Data: raw}
}

func startHub(t *testing.T, pub *fakePublisher) *Hub {
	t.Helper()
	h := NewHub(pub, &leaveRecorder{}, 0)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

func TestHub_Lifecycle(t *testing.T) {
	h := NewHub(&fakePublisher{}, &leaveRecorder{}, 0)
	assert.ErrorIs(t, h.Stop(), ErrHubNotRunning)
	assert.ErrorIs(t, h.Submit(&testConn{id: "a"}, types.InboundEvent{Event: types.EventJoin}), ErrHubNotRunning)

	require.NoError(t, h.Start(context.Background()))
	assert.ErrorIs(t, h.Start(context.Background()), ErrHubAlreadyRunning)
	require.NoError(t, h.Stop())

	require.NoError(t, h.Start(context.Background()), "restart after stop")
	require.NoError(t, h.Stop())
}

func TestHub_StopsWithContext(t *testing.T) {
	h := NewHub(&fakePublisher{}, &leaveRecorder{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return h.Submit(&testConn{id: "a"}, types.InboundEvent{Event: types.EventJoin}) == ErrHubNotRunning
	}, time.Second, 10*time.Millisecond)
}

func TestHub_DispatchesInSubmissionOrder(t *testing.T) {
	pub := &fakePublisher{}
	h := startHub(t, pub)
	conn := &testConn{id: "c1", userID: 9}

	require.NoError(t, h.Submit(conn, event(t, types.EventJoin, types.JoinPayload{RoomID: 3})))
	require.NoError(t, h.Submit(conn, event(t, types.EventSendMessage, types.SendMessagePayload{RoomID: 3, Message: "halo"})))

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	calls := pub.snapshot()
	assert.Equal(t, call{kind: "subscribe", userID: 9, roomID: 3}, calls[0])
	assert.Equal(t, call{kind: "publish", userID: 9, roomID: 3, text: "halo"}, calls[1])
	assert.Empty(t, conn.events())
}

func TestHub_ErrorsGoToSender(t *testing.T) {
	pub := &fakePublisher{publishErr: broadcast.ErrRateLimitExceeded}
	h := startHub(t, pub)
	conn := &testConn{id: "c1", userID: 9}

	require.NoError(t, h.Submit(conn, event(t, types.EventSendMessage, types.SendMessagePayload{RoomID: 1, Message: "spam"})))

	require.Eventually(t, func() bool { return len(conn.events()) == 1 }, time.Second, 10*time.Millisecond)
	ev := conn.events()[0]
	assert.Equal(t, types.EventError, ev.Event)
	assert.Equal(t, broadcast.ErrRateLimitExceeded.Error(), ev.Data.(types.ErrorPayload).Message)
}

func TestHub_InternalFailureHidesDetail(t *testing.T) {
	pub := &fakePublisher{publishErr: errors.New("disk I/O error")}
	h := startHub(t, pub)
	conn := &testConn{id: "c1", userID: 9}

	require.NoError(t, h.Submit(conn, event(t, types.EventSendMessage, types.SendMessagePayload{RoomID: 1, Message: "x"})))

	require.Eventually(t, func() bool { return len(conn.events()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "internal error", conn.events()[0].Data.(types.ErrorPayload).Message)
}

func TestHub_IgnoresUnknownAndUndecodableEvents(t *testing.T) {
	pub := &fakePublisher{}
	h := startHub(t, pub)
	conn := &testConn{id: "c1", userID: 9}

	require.NoError(t, h.Submit(conn, types.InboundEvent{Event: "dance"}))
	require.NoError(t, h.Submit(conn, types.InboundEvent{Event: types.EventJoin}))
	require.NoError(t, h.Submit(conn, types.InboundEvent{Event: types.EventJoin, Data: json.RawMessage(`"x"`)}))
	require.NoError(t, h.Submit(conn, event(t, types.EventJoin, types.JoinPayload{RoomID: 4})))

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(4), pub.snapshot()[0].roomID)
	assert.Empty(t, conn.events())
}

func TestHub_SkipsClosedConnections(t *testing.T) {
	pub := &fakePublisher{}
	h := startHub(t, pub)
	closed := &testConn{id: "gone", userID: 1, closed: true}
	live := &testConn{id: "live", userID: 2}

	require.NoError(t, h.Submit(closed, event(t, types.EventJoin, types.JoinPayload{RoomID: 1})))
	require.NoError(t, h.Submit(live, event(t, types.EventJoin, types.JoinPayload{RoomID: 1})))

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), pub.snapshot()[0].userID)
}

func TestHub_QueueFull(t *testing.T) {
	h := NewHub(&fakePublisher{}, &leaveRecorder{}, 1)
	// Mark running without a dispatcher so nothing drains.
	h.running = true

	conn := &testConn{id: "c1", userID: 1}
	require.NoError(t, h.Submit(conn, types.InboundEvent{Event: types.EventJoin}))
	assert.ErrorIs(t, h.Submit(conn, types.InboundEvent{Event: types.EventJoin}), ErrEventQueueFull)
}

func TestHub_DisconnectLeavesAllChannels(t *testing.T) {
	ch := &leaveRecorder{}
	h := NewHub(&fakePublisher{}, ch, 0)

	h.Disconnect(&testConn{id: "c7"})
	assert.Equal(t, []string{"c7"}, ch.left)
}

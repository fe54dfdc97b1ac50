package interfaces_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

type stubConnection struct {
	userID int64
	sent   []interface{}
}

func (s *stubConnection) GetID() string         { return "stub" }
func (s *stubConnection) Close() error          { return nil }
func (s *stubConnection) IsClosed() bool        { return false }
func (s *stubConnection) GetUserID() int64      { return s.userID }
func (s *stubConnection) GetUserName() string   { return "stub" }
func (s *stubConnection) IsAuthenticated() bool { return s.userID > 0 }
func (s *stubConnection) WriteJSON(v interface{}) error {
	s.sent = append(s.sent, v)
	return nil
}
func (s *stubConnection) SetCredentials(userID int64, _ string) error {
	s.userID = userID
	return nil
}

type stubChannel struct {
	members map[string][]interfaces.Connection
}

func (s *stubChannel) Join(conn interfaces.Connection, key string) error {
	s.members[key] = append(s.members[key], conn)
	return nil
}
func (s *stubChannel) Leave(interfaces.Connection, string) {}
func (s *stubChannel) LeaveAll(interfaces.Connection)      {}
func (s *stubChannel) Broadcast(key string, payload interface{}) int {
	for _, c := range s.members[key] {
		_ = c.WriteJSON(payload)
	}
	return len(s.members[key])
}

type stubMatcher struct{}

func (stubMatcher) FindOrCreateRoom(_ context.Context, _ int64, levelTag, subject, mode string) (*types.Room, error) {
	return &types.Room{ID: 1, LevelTag: levelTag, Subject: subject, Mode: mode, Status: types.RoomStatusWaiting}, nil
}
func (stubMatcher) GetRoom(context.Context, int64) (*types.Room, error) {
	return nil, interfaces.ErrNotFound
}
func (stubMatcher) IsMember(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func TestInterfaces_Satisfied(t *testing.T) {
	var _ interfaces.Connection = (*stubConnection)(nil)
	var _ interfaces.Channel = (*stubChannel)(nil)
	var _ interfaces.RoomMatcher = stubMatcher{}
}

func TestChannel_BroadcastReachesJoinedConnections(t *testing.T) {
	ch := &stubChannel{members: map[string][]interfaces.Connection{}}
	a := &stubConnection{userID: 1}
	b := &stubConnection{userID: 2}

	assert.NoError(t, ch.Join(a, "room-1"))
	assert.NoError(t, ch.Join(b, "room-2"))

	n := ch.Broadcast("room-1", "hello")
	assert.Equal(t, 1, n)
	assert.Len(t, a.sent, 1)
	assert.Empty(t, b.sent)
}

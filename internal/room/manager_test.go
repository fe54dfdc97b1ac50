package room_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growtive/internal/database"
	"growtive/internal/room"
	"growtive/internal/testutil"
	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

func setup(t *testing.T) (*room.Manager, *database.Manager) {
	t.Helper()
	db := testutil.NewManager(t)
	return room.NewManager(db), db
}

func countMembers(t *testing.T, db *database.Manager, roomID int64) int {
	t.Helper()
	members, err := db.ListMembers(context.Background(), roomID)
	require.NoError(t, err)
	return len(members)
}

func TestFindOrCreateRoom_RejectsInvalidInput(t *testing.T) {
	m, db := setup(t)
	u := testutil.CreateUser(t, db, "A", "SMP")
	ctx := context.Background()

	_, err := m.FindOrCreateRoom(ctx, u.ID, "SMP", "IPA", "trio")
	assert.ErrorIs(t, err, room.ErrInvalidMode)

	_, err = m.FindOrCreateRoom(ctx, u.ID, "", "IPA", types.ModeGroup)
	assert.ErrorIs(t, err, room.ErrInvalidRoomKey)

	_, err = m.FindOrCreateRoom(ctx, 0, "SMP", "IPA", types.ModeGroup)
	assert.ErrorIs(t, err, room.ErrInvalidUser)
}

func TestFindOrCreateRoom_OneOnOneFillsAndActivates(t *testing.T) {
	m, db := setup(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "A", "SMP")
	b := testutil.CreateUser(t, db, "B", "SMP")
	c := testutil.CreateUser(t, db, "C", "SMP")

	first, err := m.FindOrCreateRoom(ctx, a.ID, "SMP", "Matematika", types.ModeOneOnOne)
	require.NoError(t, err)
	assert.Equal(t, types.RoomStatusWaiting, first.Status, "new room is never active")

	second, err := m.FindOrCreateRoom(ctx, b.ID, "SMP", "Matematika", types.ModeOneOnOne)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, types.RoomStatusActive, second.Status)

	stored, err := m.GetRoom(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoomStatusActive, stored.Status)

	third, err := m.FindOrCreateRoom(ctx, c.ID, "SMP", "Matematika", types.ModeOneOnOne)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID, "full room is never overrun")
	assert.Equal(t, types.RoomStatusWaiting, third.Status)
	assert.Equal(t, 2, countMembers(t, db, first.ID))
}

func TestFindOrCreateRoom_GroupCapacity(t *testing.T) {
	m, db := setup(t)
	ctx := context.Background()

	var roomID int64
	for i := 0; i < types.CapacityGroup; i++ {
		u := testutil.CreateUser(t, db, "G", "SMA")
		r, err := m.FindOrCreateRoom(ctx, u.ID, "SMA", "Biologi", types.ModeGroup)
		require.NoError(t, err)
		if i == 0 {
			roomID = r.ID
		}
		require.Equal(t, roomID, r.ID)
		if i < types.CapacityGroup-1 {
			assert.Equal(t, types.RoomStatusWaiting, r.Status)
		} else {
			assert.Equal(t, types.RoomStatusActive, r.Status)
		}
	}

	extra := testutil.CreateUser(t, db, "X", "SMA")
	r, err := m.FindOrCreateRoom(ctx, extra.ID, "SMA", "Biologi", types.ModeGroup)
	require.NoError(t, err)
	assert.NotEqual(t, roomID, r.ID)
	assert.Equal(t, types.CapacityGroup, countMembers(t, db, roomID))
}

func TestFindOrCreateRoom_KeysAreIndependent(t *testing.T) {
	m, db := setup(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "A", "SD")
	b := testutil.CreateUser(t, db, "B", "SD")

	r1, err := m.FindOrCreateRoom(ctx, a.ID, "SD", "IPA", types.ModeOneOnOne)
	require.NoError(t, err)
	r2, err := m.FindOrCreateRoom(ctx, b.ID, "SD", "IPS", types.ModeOneOnOne)
	require.NoError(t, err)
	r3, err := m.FindOrCreateRoom(ctx, b.ID, "SD", "IPA", types.ModeGroup)
	require.NoError(t, err)

	assert.NotEqual(t, r1.ID, r2.ID)
	assert.NotEqual(t, r1.ID, r3.ID)
}

func TestFindOrCreateRoom_RematchReturnsSameRoom(t *testing.T) {
	m, db := setup(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "A", "SMP")

	r1, err := m.FindOrCreateRoom(ctx, a.ID, "SMP", "IPA", types.ModeOneOnOne)
	require.NoError(t, err)
	r2, err := m.FindOrCreateRoom(ctx, a.ID, "SMP", "IPA", types.ModeOneOnOne)
	require.NoError(t, err)

	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, types.RoomStatusWaiting, r2.Status, "a user cannot fill a room alone")
	assert.Equal(t, 1, countMembers(t, db, r1.ID))
}

func TestFindOrCreateRoom_EarliestRoomFillsFirst(t *testing.T) {
	m, db := setup(t)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "A", "SMA")
	b := testutil.CreateUser(t, db, "B", "SMA")
	c := testutil.CreateUser(t, db, "C", "SMA")

	r1, err := m.FindOrCreateRoom(ctx, a.ID, "SMA", "Kimia", types.ModeGroup)
	require.NoError(t, err)

	// A second waiting room for the same key, created later.
	var r2 types.Room
	require.NoError(t, db.WithRoomTx(ctx, func(tx interfaces.RoomTx) error {
		r2 = types.Room{LevelTag: "SMA", Subject: "Kimia", Mode: types.ModeGroup, Status: types.RoomStatusWaiting}
		if err := tx.InsertRoom(&r2); err != nil {
			return err
		}
		return tx.InsertMembership(r2.ID, b.ID)
	}))

	got, err := m.FindOrCreateRoom(ctx, c.ID, "SMA", "Kimia", types.ModeGroup)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, got.ID)
}

func TestFindOrCreateRoom_ConcurrentLastSlot(t *testing.T) {
	m, db := setup(t)
	ctx := context.Background()

	seed := testutil.CreateUser(t, db, "Seed", "SMP")
	existing, err := m.FindOrCreateRoom(ctx, seed.ID, "SMP", "Fisika", types.ModeOneOnOne)
	require.NoError(t, err)

	const callers = 8
	users := make([]*types.User, callers)
	for i := range users {
		users[i] = testutil.CreateUser(t, db, "C", "SMP")
	}

	results := make([]*types.Room, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := m.FindOrCreateRoom(ctx, users[i].ID, "SMP", "Fisika", types.ModeOneOnOne)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	joinedExisting := 0
	perRoom := map[int64]int{}
	for _, r := range results {
		require.NotNil(t, r)
		perRoom[r.ID]++
		if r.ID == existing.ID {
			joinedExisting++
		}
	}
	assert.Equal(t, 1, joinedExisting, "exactly one caller takes the last slot")
	assert.Equal(t, 2, countMembers(t, db, existing.ID))

	for roomID := range perRoom {
		assert.LessOrEqual(t, countMembers(t, db, roomID), types.CapacityOneOnOne)
	}
	// The remaining seven callers pair up into three full rooms and one
	// waiting room.
	assert.Len(t, perRoom, 5)
}

func TestRoomDetail(t *testing.T) {
	m, db := setup(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "Ayu", "SD")

	r, err := m.FindOrCreateRoom(ctx, a.ID, "SD", "Bahasa", types.ModeGroup)
	require.NoError(t, err)
	require.NoError(t, db.InsertMessage(ctx, &types.Message{RoomID: r.ID, UserID: a.ID, Content: "halo"}))

	detail, err := m.RoomDetail(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, detail.Room.ID)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, "Ayu", detail.Members[0].UserName)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "halo", detail.Messages[0].Content)

	_, err = m.RoomDetail(ctx, 4040)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

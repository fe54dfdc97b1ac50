package database_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"growtive/internal/database"
	"growtive/internal/testutil"
	dbconfig "growtive/pkg/database"
	"growtive/pkg/interfaces"
	"growtive/pkg/types"
)

func TestNewManager_InvalidConfig(t *testing.T) {
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = ""
	_, err := database.NewManager(cfg)
	assert.Error(t, err)
}

func TestManager_HealthCheckAndClose(t *testing.T) {
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "health.db")
	m, err := database.NewManager(cfg)
	require.NoError(t, err)

	require.NoError(t, m.HealthCheck(context.Background()))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "second close is a no-op")

	err = m.CreateUser(context.Background(), &types.User{Name: "late", Email: "late@example.com", LevelTag: "SD"})
	assert.ErrorIs(t, err, database.ErrManagerClosed)
}

func TestManager_Users(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()

	u := &types.User{Name: "Sari", Email: "sari@example.com", PasswordHash: "h", LevelTag: "SMA"}
	require.NoError(t, m.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, 1, u.Level)

	dup := &types.User{Name: "Sari 2", Email: "sari@example.com", PasswordHash: "h", LevelTag: "SMA"}
	assert.ErrorIs(t, m.CreateUser(ctx, dup), interfaces.ErrAlreadyExists)

	got, err := m.GetUserByEmail(ctx, "sari@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.LastLoginDate.Valid)

	_, err = m.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	updated, err := m.UpdateUser(ctx, u.ID, func(u *types.User) error {
		u.XP += 130
		u.Level = 2
		u.LastLoginDate = null.StringFrom("2024-05-01")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 130, updated.XP)

	reloaded, err := m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 130, reloaded.XP)
	assert.Equal(t, "2024-05-01", reloaded.LastLoginDate.String)
}

func TestManager_UpdateUserAbort(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, m, "Rudi", "SD")

	boom := errors.New("boom")
	_, err := m.UpdateUser(ctx, u.ID, func(u *types.User) error {
		u.Coins = 999
		return boom
	})
	assert.ErrorIs(t, err, boom)

	reloaded, err := m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.Coins)
}

func TestManager_UpdateUserConcurrentIncrements(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, m, "Rina", "SMP")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.UpdateUser(ctx, u.ID, func(u *types.User) error {
				u.Coins += 10
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reloaded, err := m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, reloaded.Coins)
}

func TestManager_TopUsers(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()

	for i, xp := range []int{50, 300, 120} {
		u := testutil.CreateUser(t, m, []string{"a", "b", "c"}[i], "SD")
		_, err := m.UpdateUser(ctx, u.ID, func(u *types.User) error { u.XP = xp; return nil })
		require.NoError(t, err)
	}

	top, err := m.TopUsers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Name)
	assert.Equal(t, "c", top[1].Name)
}

func TestManager_RoomTxCommitsAtomically(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, m, "Dewi", "SMP")

	var room types.Room
	err := m.WithRoomTx(ctx, func(tx interfaces.RoomTx) error {
		room = types.Room{LevelTag: "SMP", Subject: "IPA", Mode: types.ModeGroup, Status: types.RoomStatusWaiting}
		if err := tx.InsertRoom(&room); err != nil {
			return err
		}
		return tx.InsertMembership(room.ID, u.ID)
	})
	require.NoError(t, err)

	ok, err := m.IsMember(ctx, room.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := m.ListMembers(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Dewi", members[0].UserName)
}

func TestManager_RoomTxRollsBack(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()

	var roomID int64
	err := m.WithRoomTx(ctx, func(tx interfaces.RoomTx) error {
		room := types.Room{LevelTag: "SD", Subject: "IPS", Mode: types.ModeOneOnOne, Status: types.RoomStatusWaiting}
		if err := tx.InsertRoom(&room); err != nil {
			return err
		}
		roomID = room.ID
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = m.GetRoom(ctx, roomID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestManager_ListWaitingRoomsInCreationOrder(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	var ids []int64
	require.NoError(t, m.WithRoomTx(ctx, func(tx interfaces.RoomTx) error {
		for i := 0; i < 3; i++ {
			r := types.Room{
				LevelTag: "SMA", Subject: "Kimia", Mode: types.ModeGroup, Status: types.RoomStatusWaiting,
				CreatedAt: base.Add(time.Duration(2-i) * time.Minute),
			}
			if err := tx.InsertRoom(&r); err != nil {
				return err
			}
			ids = append(ids, r.ID)
		}
		return tx.UpdateRoomStatus(ids[1], types.RoomStatusActive)
	}))

	var waiting []*types.Room
	require.NoError(t, m.WithRoomTx(ctx, func(tx interfaces.RoomTx) error {
		var err error
		waiting, err = tx.ListWaitingRooms("SMA", "Kimia", types.ModeGroup)
		return err
	}))
	require.Len(t, waiting, 2)
	assert.Equal(t, ids[2], waiting[0].ID, "earliest created first")
	assert.Equal(t, ids[0], waiting[1].ID)
}

func TestManager_MessagesAscending(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, m, "Agus", "SMP")

	var room types.Room
	require.NoError(t, m.WithRoomTx(ctx, func(tx interfaces.RoomTx) error {
		room = types.Room{LevelTag: "SMP", Subject: "IPA", Mode: types.ModeOneOnOne, Status: types.RoomStatusWaiting}
		return tx.InsertRoom(&room)
	}))

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, text := range []string{"satu", "dua", "tiga"} {
		msg := &types.Message{RoomID: room.ID, UserID: u.ID, Content: text, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, m.InsertMessage(ctx, msg))
		assert.NotZero(t, msg.ID)
	}

	history, err := m.ListMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, text := range []string{"satu", "dua", "tiga"} {
		assert.Equal(t, text, history[i].Content)
		assert.Equal(t, "Agus", history[i].UserName)
	}
}

func TestManager_MaterialsBookmarksNotes(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, m, "Lina", "SMP")

	premium := &types.Material{LevelTag: "SMP", Grade: "9", Subject: "Fisika", Topic: "Gaya", Title: "Hukum Newton", IsPremium: true}
	require.NoError(t, m.CreateMaterial(ctx, premium))

	all, err := m.ListMaterials(ctx, types.MaterialFilter{LevelTag: "SMP"})
	require.NoError(t, err)
	assert.Len(t, all, 2, "seeded sample plus one")

	physics, err := m.ListMaterials(ctx, types.MaterialFilter{LevelTag: "SMP", Subject: "Fisika"})
	require.NoError(t, err)
	require.Len(t, physics, 1)
	assert.True(t, physics[0].IsPremium)

	b1, err := m.AddBookmark(ctx, u.ID, premium.ID)
	require.NoError(t, err)
	b2, err := m.AddBookmark(ctx, u.ID, premium.ID)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, b2.ID)

	ok, err := m.IsBookmarked(ctx, u.ID, premium.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.AddNote(ctx, &types.Note{UserID: u.ID, MaterialID: premium.ID, Content: "F = m a"}))
	notes, err := m.ListNotes(ctx, u.ID, premium.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "F = m a", notes[0].Content)
}

func TestManager_RecordUpgrade(t *testing.T) {
	m := testutil.NewManager(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, m, "Tono", "SMA")

	txn := &types.Transaction{UserID: u.ID, Plan: "pro", Amount: 49000, Status: types.TransactionStatusPaid}
	require.NoError(t, m.RecordUpgrade(ctx, txn))
	assert.NotZero(t, txn.ID)

	reloaded, err := m.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPremium)

	txns, err := m.ListTransactions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "pro", txns[0].Plan)

	err = m.RecordUpgrade(ctx, &types.Transaction{UserID: 424242, Plan: "pro", Amount: 1, Status: types.TransactionStatusPaid})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

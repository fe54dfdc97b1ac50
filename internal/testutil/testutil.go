// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"growtive/internal/database"
	dbconfig "growtive/pkg/database"
	"growtive/pkg/types"
)

var userSeq int64

// NewManager opens a migrated SQLite database in a temp dir and closes it
// when the test ends.
func NewManager(t testing.TB) *database.Manager {
	t.Helper()

	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	m, err := database.NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// CreateUser inserts a user with a unique email. The password hash is a
// placeholder and cannot be used to log in.
func CreateUser(t testing.TB, m *database.Manager, name, levelTag string) *types.User {
	t.Helper()

	n := atomic.AddInt64(&userSeq, 1)
	u := &types.User{
		Name:         name,
		Email:        fmt.Sprintf("user%d@example.com", n),
		PasswordHash: "x",
		LevelTag:     levelTag,
		Level:        1,
	}
	require.NoError(t, m.CreateUser(context.Background(), u))
	return u
}

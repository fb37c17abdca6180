package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		profile  DatabaseProfile
		contains []string
	}{
		{
			name:    "standard profile",
			path:    "/path/to/db.sqlite",
			profile: ProfileStandard,
			contains: []string{
				"/path/to/db.sqlite",
				"journal_mode(WAL)",
				"synchronous(NORMAL)",
				"auto_vacuum(INCREMENTAL)",
				"temp_store(MEMORY)",
				"foreign_keys(1)",
				"wal_autocheckpoint(1000)",
				"cache_size(-64000)",
			},
		},
		{
			name:    "ledger profile",
			path:    "/path/to/ledger.sqlite",
			profile: ProfileLedger,
			contains: []string{
				"/path/to/ledger.sqlite",
				"journal_mode(WAL)",
				"synchronous(FULL)",
				"auto_vacuum(NONE)",
				"foreign_keys(1)",
			},
		},
		{
			name:    "empty profile defaults",
			path:    "/path/to/db.sqlite",
			profile: "",
			contains: []string{
				"/path/to/db.sqlite",
				"journal_mode(WAL)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildConnectionString(tt.path, tt.profile)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
		})
	}
}

func openTestEventsDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := New(Config{
		Path:    filepath.Join(dir, "events.sqlite"),
		Profile: ProfileLedger,
		Name:    "events",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestNewAndMigrate(t *testing.T) {
	db := openTestEventsDB(t)

	// Migration is idempotent.
	require.NoError(t, db.Migrate())

	_, err := db.Exec(`INSERT INTO events (timestamp, sequence, action) VALUES (?, ?, ?)`,
		"2026-07-29T10:00:00Z", 1, "STARTUP")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrateUnknownDatabaseIsNoop(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{
		Path: filepath.Join(dir, "scratch.sqlite"),
		Name: "scratch",
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := openTestEventsDB(t)

	wantErr := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`INSERT INTO events (timestamp, sequence, action) VALUES (?, ?, ?)`, "2026-07-29T10:00:00Z", 1, "STARTUP")
		require.NoError(t, execErr)
		return wantErr
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Equal(t, 0, count, "rolled-back insert must not be visible")
}

func TestWithTransactionCommitsOnSuccess(t *testing.T) {
	db := openTestEventsDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`INSERT INTO events (timestamp, sequence, action) VALUES (?, ?, ?)`, "2026-07-29T10:00:00Z", 1, "STARTUP")
		return execErr
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestQuickCheck(t *testing.T) {
	db := openTestEventsDB(t)
	require.NoError(t, db.QuickCheck(context.Background()))
}

func TestPathReportsAbsolutePath(t *testing.T) {
	db := openTestEventsDB(t)
	assert.True(t, filepath.IsAbs(db.Path()))
	assert.True(t, strings.HasSuffix(db.Path(), "events.sqlite"))
}

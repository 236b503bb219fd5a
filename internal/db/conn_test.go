package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("creates directory and database", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "test.db")

		ctx := context.Background()
		store, err := NewStore(ctx, dbPath)
		require.NoError(t, err)
		defer store.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)

		var result int
		err = store.QueryRowContext(ctx, "SELECT 1").Scan(&result)
		assert.NoError(t, err)
		assert.Equal(t, 1, result)
	})

	t.Run("applies pragmas", func(t *testing.T) {
		ctx := context.Background()
		store, err := NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer store.Close()

		var mode string
		require.NoError(t, store.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)

		var fk int
		require.NoError(t, store.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)
	})
}

func TestStore_Migrate(t *testing.T) {
	t.Run("creates tables", func(t *testing.T) {
		store := NewTestStore(t)
		ctx := context.Background()

		for _, table := range []string{"accounts", "publications", "analytics_snapshots", "generations"} {
			var name string
			err := store.QueryRowContext(ctx,
				"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
			assert.NoError(t, err, table)
			assert.Equal(t, table, name)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		store := NewTestStore(t)
		ctx := context.Background()

		require.NoError(t, store.Migrate(ctx))

		pending, err := store.PendingMigrations(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)

		count, err := store.CountGenerations(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("reports pending migrations", func(t *testing.T) {
		ctx := context.Background()
		store, err := NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer store.Close()

		pending, err := store.PendingMigrations(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_init.sql"}, pending)
	})
}

func TestExtractUpMigration(t *testing.T) {
	t.Run("extracts up portion", func(t *testing.T) {
		content := `-- +migrate Up
CREATE TABLE test (id INTEGER);

-- +migrate Down
DROP TABLE test;
`
		assert.Equal(t, "CREATE TABLE test (id INTEGER);", extractUpMigration(content))
	})

	t.Run("handles no down marker", func(t *testing.T) {
		content := "CREATE TABLE test (id INTEGER);"
		assert.Equal(t, "CREATE TABLE test (id INTEGER);", extractUpMigration(content))
	})
}

func TestAccounts(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := store.CreateAccount(ctx, CreateAccountParams{
		ID:             "acc-1",
		UserID:         "user-1",
		Platform:       "linkedin",
		PlatformUserID: sql.NullString{String: "abc", Valid: true},
		AccessToken:    "token",
		CreatedAt:      now,
	})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", created.ID)
	assert.True(t, created.CreatedAt.Equal(now))
	assert.False(t, created.RefreshToken.Valid)

	expires := now.Add(time.Hour)
	err = store.UpdateAccountTokens(ctx, UpdateAccountTokensParams{
		ID:             "acc-1",
		AccessToken:    "token-2",
		RefreshToken:   sql.NullString{String: "refresh", Valid: true},
		TokenExpiresAt: sql.NullTime{Time: expires, Valid: true},
		UpdatedAt:      now,
	})
	require.NoError(t, err)

	got, err := store.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "token-2", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken.String)
	assert.True(t, got.TokenExpiresAt.Time.Equal(expires))
	assert.False(t, got.TokenExpired(now, time.Minute))
	assert.True(t, got.TokenExpired(now.Add(59*time.Minute), 5*time.Minute))

	list, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteAccount(ctx, "acc-1"))
	_, err = store.GetAccount(ctx, "acc-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestPublicationsAndSnapshots(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.CreateAccount(ctx, CreateAccountParams{
		ID: "acc-1", UserID: "user-1", Platform: "instagram", AccessToken: "token", CreatedAt: now,
	})
	require.NoError(t, err)

	_, err = store.CreatePublication(ctx, CreatePublicationParams{
		PostID: "p1", AccountID: "acc-1", Platform: "instagram",
		Error: sql.NullString{String: "rate limited", Valid: true}, Attempt: 1, CreatedAt: now,
	})
	require.NoError(t, err)
	ok, err := store.CreatePublication(ctx, CreatePublicationParams{
		PostID: "p1", AccountID: "acc-1", Platform: "instagram", Success: true,
		PlatformPostID: sql.NullString{String: "media-1", Valid: true}, Attempt: 2, CreatedAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	latest, err := store.GetSuccessfulPublication(ctx, "p1", "instagram")
	require.NoError(t, err)
	assert.Equal(t, ok.ID, latest.ID)
	assert.True(t, latest.Success)

	counts, err := store.CountPublicationsByPlatform(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CountPublicationsByPlatformRow{{Platform: "instagram", Total: 2, Succeeded: 1}}, counts)

	_, err = store.CreateAnalyticsSnapshot(ctx, CreateAnalyticsSnapshotParams{
		PostID: "p1", AccountID: "acc-1", Platform: "instagram", PlatformPostID: "media-1",
		Likes: sql.NullInt64{Int64: 10, Valid: true}, CollectedAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	snapshots, err := store.ListAnalyticsSnapshots(ctx, "p1", "instagram")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(10), snapshots[0].Likes.Int64)
	assert.False(t, snapshots[0].Impressions.Valid)

	recent, err := store.ListRecentPublications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ok.ID, recent[0].ID)
}

// NewTestStore provides a migrated test database for use in other packages.
func NewTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	ctx := context.Background()
	store, err := NewStore(ctx, dbPath)
	require.NoError(t, err)

	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemenu/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "menu.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T) models.Snapshot {
	t.Helper()
	snap, err := models.SeedSnapshot()
	require.NoError(t, err)
	return snap
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNewDB_InMemory(t *testing.T) {
	db, err := NewDB(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	snap, err := db.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	empty, err := db.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	snap := seed(t)
	require.NoError(t, db.SaveSnapshot(ctx, snap))

	loaded, err := db.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	// saving again replaces, it does not merge
	smaller := models.NewSnapshot()
	smaller.Sections[models.SectionSides] = snap.Sections[models.SectionSides]
	require.NoError(t, db.SaveSnapshot(ctx, smaller))

	loaded, err = db.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Sections, 1)
	assert.Equal(t, smaller, loaded)
}

func TestLoadSnapshot_CorruptSection(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO menu_sections (key, title, data) VALUES ('food', 'FOOD', '{not json')`)
	require.NoError(t, err)

	_, err = db.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, models.ErrInvalidSectionData)
}

func TestArchives(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	snap := seed(t)

	first, err := db.CreateArchive(ctx, snap, models.NoteManualArchive)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, snap.ItemCount(), first.Items)

	time.Sleep(5 * time.Millisecond)
	changed := snap.Clone()
	changed.Sections[models.SectionSides].Categories[0].Items[0].Price = "₹1"
	second, err := db.CreateArchive(ctx, changed, "Price adjustment: +10%")
	require.NoError(t, err)

	list, err := db.ListArchives(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, "Price adjustment: +10%", list[0].Note)

	got, err := db.GetArchive(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, got.Snapshot)
	assert.Equal(t, first.ID, got.Info().ID)
	assert.Equal(t, first.Note, got.Info().Note)
	assert.WithinDuration(t, first.ArchivedAt, got.ArchivedAt, time.Second)

	_, err = db.GetArchive(ctx, "missing")
	assert.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("LIVEMENU_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LIVEMENU_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	logger := zerolog.Nop()

	store, err := NewPGStore(ctx, dsn, 2, &logger)
	require.NoError(t, err)
	defer store.Close()

	snap := seed(t)
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	info, err := store.CreateArchive(ctx, snap, "test")
	require.NoError(t, err)
	got, err := store.GetArchive(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, got.Snapshot)

	_, err = store.GetArchive(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrArchiveNotFound)
}

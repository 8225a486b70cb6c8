package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemenu/internal/database"
	"livemenu/internal/domain"
	"livemenu/internal/events"
	"livemenu/internal/models"
	"livemenu/internal/pricing"
	"livemenu/internal/repository"
)

func newTestStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "menu.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// failingArchiveStore rejects archive writes.
type failingArchiveStore struct {
	domain.MenuStore
	saves int
}

func (s *failingArchiveStore) CreateArchive(context.Context, models.Snapshot, string) (models.ArchiveInfo, error) {
	return models.ArchiveInfo{}, errors.New("disk full")
}

func (s *failingArchiveStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	s.saves++
	return s.MenuStore.SaveSnapshot(ctx, snap)
}

type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) PublishJSON(eventType string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type fakePriceList struct {
	mu    sync.Mutex
	snaps []models.Snapshot
}

func (f *fakePriceList) ReplacePriceList(_ context.Context, snap models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return nil
}

func firstItem(t *testing.T, snap models.Snapshot) models.MenuItem {
	t.Helper()
	c, ok := snap.Category(models.SectionKey("snacks"), 0)
	require.True(t, ok)
	require.NotEmpty(t, c.Items)
	return c.Items[0]
}

func TestMenuService_LoadFallsBackToSeed(t *testing.T) {
	store := newTestStore(t)
	cache := repository.NewMemoryStateRepository(time.Hour)
	svc := NewMenuService(store, cache, nil, nil)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	seed, _ := models.SeedSnapshot()
	assert.Equal(t, seed.ItemCount(), snap.ItemCount())

	cached, err := cache.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, cached)

	// копия не меняет состояние сервиса
	delete(snap.Sections, "snacks")
	again, _ := svc.Snapshot(context.Background())
	assert.Equal(t, seed.ItemCount(), again.ItemCount())
}

func TestMenuService_ItemCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bus := &recordingBus{}
	svc := NewMenuService(store, nil, bus, nil)
	require.NoError(t, svc.Load(ctx))

	snacks := models.SectionKey("snacks")
	idx, err := svc.AddItem(ctx, snacks, 0, models.MenuItem{Name: "Nachos", Price: "₹199"})
	require.NoError(t, err)

	snap, _ := svc.Snapshot(ctx)
	c, _ := snap.Category(snacks, 0)
	assert.Equal(t, "Nachos", c.Items[idx].Name)

	require.NoError(t, svc.UpdateItem(ctx, snacks, 0, idx, models.MenuItem{Name: "Loaded Nachos", Price: "₹249"}))
	stored, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	c, _ = stored.Category(snacks, 0)
	assert.Equal(t, "Loaded Nachos", c.Items[idx].Name)

	require.NoError(t, svc.DeleteItem(ctx, snacks, 0, idx))
	snap, _ = svc.Snapshot(ctx)
	c, _ = snap.Category(snacks, 0)
	assert.Len(t, c.Items, idx)

	assert.Equal(t, []string{events.EventMenuUpdated, events.EventMenuUpdated, events.EventMenuUpdated}, bus.types())
}

func TestMenuService_ItemErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewMenuService(newTestStore(t), nil, nil, nil)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"unknown section", func() error {
			_, err := svc.AddItem(ctx, "desserts", 0, models.MenuItem{Name: "Kulfi"})
			return err
		}, models.ErrUnknownSection},
		{"missing category", func() error {
			return svc.DeleteItem(ctx, "snacks", 99, 0)
		}, models.ErrCategoryNotFound},
		{"missing item", func() error {
			return svc.UpdateItem(ctx, "snacks", 0, 999, models.MenuItem{Name: "x"})
		}, models.ErrItemNotFound},
		{"empty name", func() error {
			return svc.UpdateItem(ctx, "snacks", 0, 0, models.MenuItem{Price: "₹1"})
		}, models.ErrItemNameRequired},
		{"conflicting prices", func() error {
			_, err := svc.AddItem(ctx, "snacks", 0, models.MenuItem{Name: "x", Price: "₹1", HalfPrice: "₹2"})
			return err
		}, models.ErrConflictingPrices},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}
}

func TestMenuService_AdjustPricesArchivesFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bus := &recordingBus{}
	prices := &fakePriceList{}
	svc := NewMenuService(store, nil, bus, nil)
	svc.SetPriceListWriter(prices)

	before, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	info, err := svc.AdjustPrices(ctx, 10, pricing.Scope{})
	require.NoError(t, err)
	assert.Equal(t, "Price adjustment: +10%", info.Note)
	assert.Equal(t, before.ItemCount(), info.Items)

	archive, err := store.GetArchive(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, "₹120", firstItem(t, archive.Snapshot).Price)

	after, _ := svc.Snapshot(ctx)
	assert.Equal(t, "₹132", firstItem(t, after).Price)

	svc.WaitSync()
	require.Len(t, prices.snaps, 1)
	assert.Equal(t, "₹132", firstItem(t, prices.snaps[0]).Price)

	assert.Equal(t, []string{events.EventArchiveCreated, events.EventPricesAdjusted}, bus.types())
}

func TestMenuService_AdjustPricesScoped(t *testing.T) {
	ctx := context.Background()
	svc := NewMenuService(newTestStore(t), nil, nil, nil)

	zero := 0
	info, err := svc.AdjustPrices(ctx, -5, pricing.Scope{Section: "food", Category: &zero})
	require.NoError(t, err)
	assert.Equal(t, "Price adjustment: -5% (food/0)", info.Note)

	after, _ := svc.Snapshot(ctx)
	assert.Equal(t, "₹120", firstItem(t, after).Price)
}

func TestMenuService_AdjustPricesRejectsBadPercent(t *testing.T) {
	svc := NewMenuService(newTestStore(t), nil, nil, nil)
	for _, p := range []float64{0, -100, -150} {
		_, err := svc.AdjustPrices(context.Background(), p, pricing.Scope{})
		assert.ErrorIs(t, err, ErrInvalidPercent, "percent %v", p)
	}
	_, err := svc.AdjustPrices(context.Background(), 5, pricing.Scope{Section: "desserts"})
	assert.ErrorIs(t, err, models.ErrUnknownSection)
}

func TestMenuService_ArchiveFailureAbortsMutation(t *testing.T) {
	ctx := context.Background()
	store := &failingArchiveStore{MenuStore: newTestStore(t)}
	bus := &recordingBus{}
	svc := NewMenuService(store, nil, bus, nil)

	_, err := svc.AdjustPrices(ctx, 10, pricing.Scope{})
	require.ErrorIs(t, err, ErrArchiveFailed)

	_, err = svc.Reset(ctx, false)
	require.ErrorIs(t, err, ErrArchiveFailed)

	snap, _ := svc.Snapshot(ctx)
	assert.Equal(t, "₹120", firstItem(t, snap).Price)
	assert.Zero(t, store.saves)
	assert.Empty(t, bus.types())
}

func TestMenuService_ResetPreservesPrices(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewMenuService(store, nil, nil, nil)

	_, err := svc.AdjustPrices(ctx, 50, pricing.Scope{})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "snacks", 0, models.MenuItem{Name: "Temporary Special", Price: "₹10"})
	require.NoError(t, err)

	info, err := svc.Reset(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, models.NoteAutoArchiveReset, info.Note)

	snap, _ := svc.Snapshot(ctx)
	seed, _ := models.SeedSnapshot()
	assert.Equal(t, seed.ItemCount(), snap.ItemCount())
	assert.Equal(t, "₹180", firstItem(t, snap).Price)

	_, err = svc.Reset(ctx, false)
	require.NoError(t, err)
	snap, _ = svc.Snapshot(ctx)
	assert.Equal(t, "₹120", firstItem(t, snap).Price)

	archives, err := svc.ListArchives(ctx)
	require.NoError(t, err)
	assert.Len(t, archives, 3)
}

func TestMenuService_ArchiveAndRestore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	bus := &recordingBus{}
	svc := NewMenuService(store, nil, bus, nil)

	manual, err := svc.Archive(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.NoteManualArchive, manual.Note)

	require.NoError(t, svc.DeleteItem(ctx, "snacks", 0, 0))

	info, err := svc.Restore(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoteAutoArchiveRestore, info.Note)

	snap, _ := svc.Snapshot(ctx)
	assert.Equal(t, "Fried Peanuts", firstItem(t, snap).Name)

	// снимок перед восстановлением тоже сохранен
	pre, err := store.GetArchive(ctx, info.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Fried Peanuts", firstItem(t, pre.Snapshot).Name)

	_, err = svc.Restore(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, database.ErrArchiveNotFound)

	assert.Contains(t, bus.types(), events.EventMenuRestored)
}

func TestMenuService_CustomSeed(t *testing.T) {
	svc := NewMenuService(newTestStore(t), nil, nil, nil)
	svc.SetSeed(func() (models.Snapshot, error) {
		return models.ParseSnapshotYAML([]byte(`
sections:
  snacks:
    title: SNACKS
    categories:
    - title: VEG
      items:
      - name: Samosa
        price: "₹40"
`))
	})

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ItemCount())
}

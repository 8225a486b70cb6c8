package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livemenu/internal/domain"
	"livemenu/internal/events"
	"livemenu/internal/metrics"
	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

var (
	ErrArchiveFailed  = errors.New("archive failed, change aborted")
	ErrInvalidPercent = errors.New("invalid price adjustment percent")
)

const priceSyncTimeout = 30 * time.Second

// MenuService owns the live snapshot. Reads return deep copies; mutations are
// serialized, written through to the store and mirrored into the cache.
type MenuService struct {
	store    domain.MenuStore
	cache    domain.StateRepository
	eventBus domain.EventPublisher
	prices   domain.PriceListWriter
	seed     func() (models.Snapshot, error)
	logger   *zerolog.Logger

	mu     sync.RWMutex
	snap   models.Snapshot
	loaded bool
	syncWG sync.WaitGroup
}

func NewMenuService(store domain.MenuStore, cache domain.StateRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *MenuService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "menu_service").Logger()
	return &MenuService{
		store:    store,
		cache:    cache,
		eventBus: eventBus,
		seed:     models.SeedSnapshot,
		logger:   &l,
	}
}

// SetSeed replaces the built-in seed menu used for empty stores and resets.
func (s *MenuService) SetSeed(seed func() (models.Snapshot, error)) {
	s.seed = seed
}

// SetPriceListWriter enables spreadsheet sync after price changes.
func (s *MenuService) SetPriceListWriter(w domain.PriceListWriter) {
	s.prices = w
}

// Load reads the snapshot from the cache, then the store, then the seed.
func (s *MenuService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *MenuService) loadLocked(ctx context.Context) error {
	if s.cache != nil {
		cached, err := s.cache.GetSnapshot(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("snapshot cache read failed")
		}
		if cached != nil && !cached.IsEmpty() {
			s.snap, s.loaded = *cached, true
			return nil
		}
	}

	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load menu: %w", err)
	}
	if snap.IsEmpty() {
		// Пустая база: работаем со встроенным меню до первого изменения
		snap, err = s.seed()
		if err != nil {
			return fmt.Errorf("load seed menu: %w", err)
		}
		s.logger.Info().Int("items", snap.ItemCount()).Msg("store is empty, using seed menu")
	}

	s.snap, s.loaded = snap, true
	s.cacheSnapshot(ctx, snap)
	return nil
}

// Snapshot returns a deep copy of the live menu.
func (s *MenuService) Snapshot(ctx context.Context) (models.Snapshot, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.snap.Clone(), nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return models.Snapshot{}, err
		}
	}
	return s.snap.Clone(), nil
}

func (s *MenuService) UpdateItem(ctx context.Context, section models.SectionKey, category, index int, item models.MenuItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, func(next *models.Snapshot) (string, events.MenuEventPayload, error) {
		c, err := categoryOf(next, section, category)
		if err != nil {
			return "", events.MenuEventPayload{}, err
		}
		if index < 0 || index >= len(c.Items) {
			return "", events.MenuEventPayload{}, fmt.Errorf("%w: %s/%d/%d", models.ErrItemNotFound, section, category, index)
		}
		c.Items[index] = item.Clone()
		return events.EventMenuUpdated, events.MenuEventPayload{Action: "item updated", Section: string(section), Category: category, Item: item.Name}, nil
	})
}

// AddItem appends item to the category and returns its index.
func (s *MenuService) AddItem(ctx context.Context, section models.SectionKey, category int, item models.MenuItem) (int, error) {
	if err := item.Validate(); err != nil {
		return 0, err
	}
	index := -1
	err := s.mutate(ctx, func(next *models.Snapshot) (string, events.MenuEventPayload, error) {
		c, err := categoryOf(next, section, category)
		if err != nil {
			return "", events.MenuEventPayload{}, err
		}
		c.Items = append(c.Items, item.Clone())
		index = len(c.Items) - 1
		return events.EventMenuUpdated, events.MenuEventPayload{Action: "item added", Section: string(section), Category: category, Item: item.Name}, nil
	})
	return index, err
}

func (s *MenuService) DeleteItem(ctx context.Context, section models.SectionKey, category, index int) error {
	return s.mutate(ctx, func(next *models.Snapshot) (string, events.MenuEventPayload, error) {
		c, err := categoryOf(next, section, category)
		if err != nil {
			return "", events.MenuEventPayload{}, err
		}
		if index < 0 || index >= len(c.Items) {
			return "", events.MenuEventPayload{}, fmt.Errorf("%w: %s/%d/%d", models.ErrItemNotFound, section, category, index)
		}
		name := c.Items[index].Name
		c.Items = append(c.Items[:index], c.Items[index+1:]...)
		return events.EventMenuUpdated, events.MenuEventPayload{Action: "item deleted", Section: string(section), Category: category, Item: name}, nil
	})
}

// AdjustPrices archives the menu, then rewrites every price in scope.
func (s *MenuService) AdjustPrices(ctx context.Context, percent float64, scope pricing.Scope) (models.ArchiveInfo, error) {
	if percent == 0 || math.IsNaN(percent) || math.IsInf(percent, 0) || percent <= -100 {
		return models.ArchiveInfo{}, fmt.Errorf("%w: %v", ErrInvalidPercent, percent)
	}
	if scope.Section != "" && !scope.Section.Valid() {
		return models.ArchiveInfo{}, fmt.Errorf("%w: %q", models.ErrUnknownSection, scope.Section)
	}

	note := fmt.Sprintf("Price adjustment: %+g%%", percent)
	if scope.Section != "" {
		note += " (" + string(scope.Section)
		if scope.Category != nil {
			note += fmt.Sprintf("/%d", *scope.Category)
		}
		note += ")"
	}

	info, err := s.archiveAndReplace(ctx, note, func(current models.Snapshot) (models.Snapshot, error) {
		return pricing.AdjustSnapshot(current, percent, scope), nil
	})
	if err != nil {
		return info, err
	}

	s.publish(events.EventPricesAdjusted, events.MenuEventPayload{
		Action:    "prices adjusted",
		Section:   string(scope.Section),
		Percent:   percent,
		ArchiveID: info.ID,
		Items:     info.Items,
		ChangedAt: time.Now().UTC(),
	})
	s.syncPriceList(ctx)
	return info, nil
}

// Reset replaces the menu with the seed, optionally keeping current prices
// for items whose names match.
func (s *MenuService) Reset(ctx context.Context, preservePrices bool) (models.ArchiveInfo, error) {
	info, err := s.archiveAndReplace(ctx, models.NoteAutoArchiveReset, func(current models.Snapshot) (models.Snapshot, error) {
		seed, err := s.seed()
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("load seed menu: %w", err)
		}
		if preservePrices {
			carryPrices(current, &seed)
		}
		return seed, nil
	})
	if err != nil {
		return info, err
	}
	s.publish(events.EventMenuUpdated, events.MenuEventPayload{Action: "reset", ArchiveID: info.ID, Items: info.Items, ChangedAt: time.Now().UTC()})
	s.syncPriceList(ctx)
	return info, nil
}

// Restore archives the live menu, then replaces it with archive id.
func (s *MenuService) Restore(ctx context.Context, id string) (models.ArchiveInfo, error) {
	archive, err := s.store.GetArchive(ctx, id)
	if err != nil {
		return models.ArchiveInfo{}, err
	}
	info, err := s.archiveAndReplace(ctx, models.NoteAutoArchiveRestore, func(models.Snapshot) (models.Snapshot, error) {
		return archive.Snapshot.Clone(), nil
	})
	if err != nil {
		return info, err
	}
	s.publish(events.EventMenuRestored, events.MenuEventPayload{Action: "restored", ArchiveID: id, Items: archive.Snapshot.ItemCount(), ChangedAt: time.Now().UTC()})
	s.syncPriceList(ctx)
	return info, nil
}

// Archive stores a copy of the live menu without changing it.
func (s *MenuService) Archive(ctx context.Context, note string) (models.ArchiveInfo, error) {
	if strings.TrimSpace(note) == "" {
		note = models.NoteManualArchive
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return models.ArchiveInfo{}, err
	}
	return s.archive(ctx, snap, note)
}

func (s *MenuService) ListArchives(ctx context.Context) ([]models.ArchiveInfo, error) {
	return s.store.ListArchives(ctx)
}

func (s *MenuService) GetArchive(ctx context.Context, id string) (*models.Archive, error) {
	return s.store.GetArchive(ctx, id)
}

// WaitSync blocks until background price list syncs have finished.
func (s *MenuService) WaitSync() {
	s.syncWG.Wait()
}

func (s *MenuService) archive(ctx context.Context, snap models.Snapshot, note string) (models.ArchiveInfo, error) {
	info, err := s.store.CreateArchive(ctx, snap, note)
	if err != nil {
		metrics.IncArchiveWrite("error")
		s.logger.Error().Err(err).Str("note", note).Msg("archive write failed")
		return models.ArchiveInfo{}, fmt.Errorf("%w: %v", ErrArchiveFailed, err)
	}
	metrics.IncArchiveWrite("ok")
	s.logger.Info().Str("archive_id", info.ID).Str("note", note).Int("items", info.Items).Msg("menu archived")
	s.publish(events.EventArchiveCreated, events.ArchiveEventPayload{ArchiveID: info.ID, Note: info.Note, Items: info.Items, CreatedAt: info.ArchivedAt})
	return info, nil
}

// archiveAndReplace is the bulk mutation path: archive first, abort on failure.
func (s *MenuService) archiveAndReplace(ctx context.Context, note string, build func(current models.Snapshot) (models.Snapshot, error)) (models.ArchiveInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return models.ArchiveInfo{}, err
		}
	}

	info, err := s.archive(ctx, s.snap.Clone(), note)
	if err != nil {
		return models.ArchiveInfo{}, err
	}

	next, err := build(s.snap.Clone())
	if err != nil {
		return info, err
	}
	if err := s.commitLocked(ctx, next); err != nil {
		return info, err
	}
	return info, nil
}

type mutation func(next *models.Snapshot) (string, events.MenuEventPayload, error)

func (s *MenuService) mutate(ctx context.Context, fn mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}

	next := s.snap.Clone()
	eventType, payload, err := fn(&next)
	if err != nil {
		return err
	}
	if err := s.commitLocked(ctx, next); err != nil {
		return err
	}

	payload.Items = next.ItemCount()
	payload.ChangedAt = time.Now().UTC()
	s.publish(eventType, payload)
	return nil
}

func (s *MenuService) commitLocked(ctx context.Context, next models.Snapshot) error {
	if err := s.store.SaveSnapshot(ctx, next); err != nil {
		return fmt.Errorf("save menu: %w", err)
	}
	s.snap = next
	s.cacheSnapshot(ctx, next)
	return nil
}

func (s *MenuService) cacheSnapshot(ctx context.Context, snap models.Snapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetSnapshot(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot cache write failed")
	}
}

func (s *MenuService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

// syncPriceList pushes the current prices to the spreadsheet in the background.
func (s *MenuService) syncPriceList(ctx context.Context) {
	if s.prices == nil {
		return
	}
	s.mu.RLock()
	snap := s.snap.Clone()
	s.mu.RUnlock()

	s.syncWG.Add(1)
	go func() {
		defer s.syncWG.Done()
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), priceSyncTimeout)
		defer cancel()
		if err := s.prices.ReplacePriceList(syncCtx, snap); err != nil {
			s.logger.Error().Err(err).Msg("price list sync failed")
			return
		}
		s.logger.Info().Int("items", snap.ItemCount()).Msg("price list synced")
	}()
}

func categoryOf(snap *models.Snapshot, key models.SectionKey, index int) (*models.MenuCategory, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownSection, key)
	}
	section, ok := snap.Sections[key]
	if !ok || index < 0 || index >= len(section.Categories) {
		return nil, fmt.Errorf("%w: %s/%d", models.ErrCategoryNotFound, key, index)
	}
	// Sections хранятся по значению, но Categories - срез, поэтому указатель валиден
	return &section.Categories[index], nil
}

func itemKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// carryPrices copies price fields from current into seed for items with the same name.
func carryPrices(current models.Snapshot, seed *models.Snapshot) {
	prices := make(map[string]models.MenuItem)
	for _, section := range current.Sections {
		for _, c := range section.Categories {
			for _, item := range c.Items {
				prices[itemKey(item.Name)] = item
			}
		}
	}
	for key, section := range seed.Sections {
		for ci := range section.Categories {
			items := section.Categories[ci].Items
			for ii := range items {
				old, ok := prices[itemKey(items[ii].Name)]
				if !ok {
					continue
				}
				items[ii].Price = old.Price
				items[ii].HalfPrice = old.HalfPrice
				items[ii].FullPrice = old.FullPrice
				items[ii].Sizes = append([]string(nil), old.Sizes...)
			}
		}
		seed.Sections[key] = section
	}
}

// Package schedule owns slot and item writes, resolution of the active slot and the
// cached status that players poll.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/cache"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/notify"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolve"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/telemetry"
)

const DefaultCacheTTL = time.Minute

type Options struct {
	// Location is the zone the schedule's wall-clock times are read in.
	Location *time.Location
	Horizon  time.Duration
	CacheTTL time.Duration
	Clock    func() time.Time
}

type Service struct {
	repo     *Repository
	assets   db.AssetCatalog
	engine   resolve.Engine
	cache    cache.StatusCache
	notifier notify.Publisher
	loc      *time.Location
	cacheTTL time.Duration
	clock    func() time.Time
	logger   zerolog.Logger

	flight     singleflight.Group
	generation atomic.Uint64

	subMu  sync.Mutex
	subs   map[int]func()
	nextID int
}

func NewService(repo *Repository, assets db.AssetCatalog, statusCache cache.StatusCache, notifier notify.Publisher, opts Options, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if statusCache == nil {
		statusCache = cache.NewMemory()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		repo:     repo,
		assets:   assets,
		engine:   resolve.New(opts.Horizon),
		cache:    statusCache,
		notifier: notifier,
		loc:      opts.Location,
		cacheTTL: opts.CacheTTL,
		clock:    opts.Clock,
		logger:   logger.With().Str("component", "schedule").Logger(),
		subs:     make(map[int]func()),
	}
}

// Now is the service clock in the schedule's zone.
func (s *Service) Now() time.Time {
	return s.clock().In(s.loc)
}

func (s *Service) Location() *time.Location { return s.loc }

// Subscribe registers fn to run after every successful write. fn must not block.
// The returned func unregisters it.
func (s *Service) Subscribe(fn func()) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Service) ListSlots(ctx context.Context) ([]model.Slot, error) {
	slots, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, slots)
	return slots, nil
}

func (s *Service) GetSlot(ctx context.Context, slotID string) (model.Slot, error) {
	slot, err := s.repo.Get(ctx, slotID)
	if err != nil {
		return model.Slot{}, err
	}
	one := []model.Slot{slot}
	s.enrich(ctx, one)
	return one[0], nil
}

func (s *Service) ListItems(ctx context.Context, slotID string) ([]model.SlotItem, error) {
	slot, err := s.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	return slot.Items, nil
}

// GetStatus resolves the schedule at now. A cached status is reused while it is
// younger than the cache TTL and no boundary has passed since it was computed.
func (s *Service) GetStatus(ctx context.Context, now time.Time) (model.ScheduleStatus, error) {
	now = now.In(s.loc)
	if cached, ok := s.cache.Get(ctx); ok && s.fresh(cached, now) {
		telemetry.StatusCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	telemetry.StatusCacheTotal.WithLabelValues("miss").Inc()
	return s.compute(ctx, now, "request")
}

// Refresh resolves at the current time, bypassing the cache, and stores the result.
func (s *Service) Refresh(ctx context.Context) (model.ScheduleStatus, error) {
	return s.compute(ctx, s.Now(), "refresh")
}

func (s *Service) fresh(st model.ScheduleStatus, now time.Time) bool {
	if st.ComputedAt.IsZero() || now.Before(st.ComputedAt) {
		return false
	}
	if now.Sub(st.ComputedAt) >= s.cacheTTL {
		return false
	}
	return st.NextChangeAt == nil || now.Before(*st.NextChangeAt)
}

// compute coalesces concurrent resolutions that see the same writes within the
// same second. Callers in that window share the first caller's result.
func (s *Service) compute(ctx context.Context, now time.Time, trigger string) (model.ScheduleStatus, error) {
	gen := s.generation.Load()
	key := strconv.FormatUint(gen, 10) + ":" + strconv.FormatInt(now.Truncate(time.Second).Unix(), 10)
	v, err, shared := s.flight.Do(key, func() (any, error) {
		slots, err := s.ListSlots(ctx)
		if err != nil {
			return model.ScheduleStatus{}, err
		}
		status := s.engine.Resolve(slots, now)
		telemetry.ResolutionsTotal.WithLabelValues(trigger).Inc()
		s.cacheStatus(ctx, gen, status)
		return status, nil
	})
	if err != nil {
		return model.ScheduleStatus{}, fmt.Errorf("resolve schedule: %w", err)
	}
	if shared {
		s.logger.Debug().Str("trigger", trigger).Msg("shared in-flight status resolution")
	}
	return v.(model.ScheduleStatus), nil
}

// cacheStatus caches a status resolved against generation gen. A write that lands before
// or during the Set leaves the cache invalidated rather than holding the stale result.
func (s *Service) cacheStatus(ctx context.Context, gen uint64, status model.ScheduleStatus) {
	if s.generation.Load() != gen {
		return
	}
	if err := s.cache.Set(ctx, status); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache schedule status")
		return
	}
	if s.generation.Load() != gen {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drop stale schedule status")
		}
	}
}

func (s *Service) CreateSlot(ctx context.Context, in SlotInput) (model.Slot, error) {
	slot, err := s.repo.Create(ctx, in)
	if err = s.written(ctx, "create_slot", err); err != nil {
		return model.Slot{}, err
	}
	return s.GetSlot(ctx, slot.ID)
}

func (s *Service) UpdateSlot(ctx context.Context, slotID string, patch SlotPatch, expectedVersion *int) (model.Slot, error) {
	_, err := s.repo.Update(ctx, slotID, patch, expectedVersion)
	if err = s.written(ctx, "update_slot", err); err != nil {
		return model.Slot{}, err
	}
	return s.GetSlot(ctx, slotID)
}

func (s *Service) DeleteSlot(ctx context.Context, slotID string, expectedVersion *int) error {
	err := s.repo.Delete(ctx, slotID, expectedVersion)
	return s.written(ctx, "delete_slot", err)
}

// AddItem appends the asset to the slot's content. Unknown assets are rejected with
// a NotFoundError of kind "asset".
func (s *Service) AddItem(ctx context.Context, slotID string, in ItemInput) (model.SlotItem, error) {
	in.AssetID = strings.TrimSpace(in.AssetID)
	if in.AssetID != "" {
		asset, err := s.assets.GetAsset(ctx, in.AssetID)
		if errors.Is(err, db.ErrNotFound) {
			return model.SlotItem{}, s.written(ctx, "add_item", assetNotFound(in.AssetID))
		}
		if err != nil {
			return model.SlotItem{}, fmt.Errorf("look up asset %s: %w", in.AssetID, err)
		}
		in.AssetID = asset.ID
	}

	item, err := s.repo.AddItem(ctx, slotID, in)
	if err = s.written(ctx, "add_item", err); err != nil {
		return model.SlotItem{}, err
	}
	s.enrichItems(ctx, []*model.SlotItem{&item})
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, slotID, itemID string) error {
	err := s.repo.RemoveItem(ctx, slotID, itemID)
	return s.written(ctx, "remove_item", err)
}

func (s *Service) ReorderItems(ctx context.Context, slotID string, itemIDs []string) ([]model.SlotItem, error) {
	items, err := s.repo.ReorderItems(ctx, slotID, itemIDs)
	if err = s.written(ctx, "reorder_items", err); err != nil {
		return nil, err
	}
	ptrs := make([]*model.SlotItem, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	s.enrichItems(ctx, ptrs)
	return items, nil
}

func (s *Service) UpdateItem(ctx context.Context, slotID, itemID string, patch ItemPatch) (model.SlotItem, error) {
	item, err := s.repo.UpdateItem(ctx, slotID, itemID, patch)
	if err = s.written(ctx, "update_item", err); err != nil {
		return model.SlotItem{}, err
	}
	s.enrichItems(ctx, []*model.SlotItem{&item})
	return item, nil
}

// written records the outcome of a write and, on success, drops the cached status,
// tells subscribers and notifies players.
func (s *Service) written(ctx context.Context, op string, err error) error {
	if err != nil {
		telemetry.MutationsTotal.WithLabelValues(op, outcome(err)).Inc()
		return err
	}
	telemetry.MutationsTotal.WithLabelValues(op, "ok").Inc()

	s.generation.Add(1)
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Str("operation", op).Msg("failed to invalidate status cache")
	}

	s.subMu.Lock()
	for _, fn := range s.subs {
		fn()
	}
	s.subMu.Unlock()

	go s.notifyUpdated(op)
	return nil
}

func (s *Service) notifyUpdated(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg := notify.Message{Type: notify.MessageScheduleUpdated, Reason: reason, Timestamp: s.clock().Unix()}
	if err := s.notifier.Publish(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Str("reason", reason).Msg("failed to publish schedule update")
	}
}

func outcome(err error) string {
	var (
		verr *ValidationError
		nf   *NotFoundError
		dup  *DuplicateItemError
		conf *ConflictError
		ord  *InvalidOrderError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &ord):
		return "invalid"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &dup), errors.As(err, &conf):
		return "conflict"
	default:
		return "error"
	}
}

// enrich attaches catalog assets to every item. A catalog outage leaves items
// without assets rather than failing the read.
func (s *Service) enrich(ctx context.Context, slots []model.Slot) {
	var items []*model.SlotItem
	for i := range slots {
		for j := range slots[i].Items {
			items = append(items, &slots[i].Items[j])
		}
	}
	s.enrichItems(ctx, items)
}

func (s *Service) enrichItems(ctx context.Context, items []*model.SlotItem) {
	if len(items) == 0 || s.assets == nil {
		return
	}
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.AssetID]; !ok {
			seen[it.AssetID] = struct{}{}
			ids = append(ids, it.AssetID)
		}
	}

	assets, err := s.assets.GetAssets(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Int("assets", len(ids)).Msg("asset lookup failed, serving items without assets")
		return
	}
	for _, it := range items {
		if a, ok := assets[it.AssetID]; ok {
			it.Asset = &a
			it.Dangling = false
		} else {
			it.Asset = nil
			it.Dangling = true
		}
	}
}

package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/cache"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/notify"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
)

// Monday.
var testNow = time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recorder) Publish(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) Close() {}

func (r *recorder) ofType(typ string) []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Message
	for _, m := range r.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *db.MemoryStore
	assets *db.MemoryAssets
	pub    *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := db.NewMemoryStore()
	assets := db.NewMemoryAssets(
		model.Asset{ID: "X", Name: "Promo", Mimetype: "video/mp4", Duration: 15, IsEnabled: true},
		model.Asset{ID: "Y", Name: "Menu", Mimetype: "image/png", Duration: 10, IsEnabled: true},
		model.Asset{ID: "Z", Name: "Weather", Mimetype: "text/html", Duration: 20, IsEnabled: true},
	)
	pub := &recorder{}
	repo := NewRepository(store, ordering.NewManager(), zerolog.Nop())
	svc := NewService(repo, assets, cache.NewMemory(), pub, Options{
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
	}, zerolog.Nop())
	return &fixture{svc: svc, store: store, assets: assets, pub: pub}
}

func tod(h, m int) *model.TimeOfDay {
	t := model.NewTimeOfDay(h, m, 0)
	return &t
}

func today() *model.Date {
	d := model.DateOf(testNow)
	return &d
}

func businessHours() SlotInput {
	return SlotInput{
		Name:     "Business hours",
		Type:     model.SlotTypeTime,
		TimeFrom: tod(9, 0),
		TimeTo:   tod(18, 0),
		Days:     model.Weekdays{1, 2, 3, 4, 5},
	}
}

func (f *fixture) create(t *testing.T, in SlotInput) model.Slot {
	t.Helper()
	s, err := f.svc.CreateSlot(context.Background(), in)
	require.NoError(t, err)
	return s
}

func (f *fixture) defaults(t *testing.T) []string {
	t.Helper()
	slots, err := f.svc.ListSlots(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, s := range slots {
		if s.IsDefault {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func requireDense(t *testing.T, orders []int) {
	t.Helper()
	for i, o := range orders {
		require.Equal(t, i, o, "sort orders %v", orders)
	}
}

func itemOrders(items []model.SlotItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.SortOrder
	}
	return out
}

func TestFallbackOnlySchedule(t *testing.T) {
	f := newFixture(t)
	f.create(t, SlotInput{Name: "Fallback", Type: model.SlotTypeDefault})

	status, err := f.svc.GetStatus(context.Background(), testNow)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "Fallback", status.CurrentSlot.Name)
	assert.True(t, status.UsingDefault)
	assert.Equal(t, 1, status.TotalSlots)
}

func TestEmptyScheduleIsDisabled(t *testing.T) {
	f := newFixture(t)

	status, err := f.svc.GetStatus(context.Background(), testNow)
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.Nil(t, status.CurrentSlot)
	assert.Nil(t, status.NextChangeAt)
	assert.False(t, status.UsingDefault)
}

func TestOneTimeEventOverridesBusinessHours(t *testing.T) {
	f := newFixture(t)
	f.create(t, businessHours())
	event := f.create(t, SlotInput{
		Name:       "Launch",
		Type:       model.SlotTypeEvent,
		TimeFrom:   tod(12, 0),
		Recurrence: model.RecurrenceOnce,
		StartDate:  today(),
	})

	status, err := f.svc.GetStatus(context.Background(), testNow)
	require.NoError(t, err)
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, event.ID, status.CurrentSlot.ID)
	assert.False(t, status.UsingDefault)
	assert.True(t, event.NoLoop)
}

func TestAddItemTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())

	item, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "X"})
	require.NoError(t, err)
	assert.Equal(t, 0, item.SortOrder)
	require.NotNil(t, item.Asset)
	assert.Equal(t, "Promo", item.Asset.Name)

	_, err = f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "X"})
	var dup *DuplicateItemError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "X", dup.AssetID)

	items, err := f.svc.ListItems(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAddItemRejectsUnknownAssetAndSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())

	_, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "nope"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "asset", nf.Kind)

	_, err = f.svc.AddItem(ctx, "missing", ItemInput{AssetID: "X"})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "slot", nf.Kind)

	item, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "  Y "})
	require.NoError(t, err)
	assert.Equal(t, "Y", item.AssetID)
	require.NotNil(t, item.Asset)
	assert.Equal(t, "Menu", item.Asset.Name)

	_, err = f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "X", DurationOverride: new(int)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.ByField(), "duration_override")
}

func TestReorderItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())

	a, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "X"})
	require.NoError(t, err)
	b, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "Y"})
	require.NoError(t, err)
	c, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "Z"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, []int{a.SortOrder, b.SortOrder, c.SortOrder})

	items, err := f.svc.ReorderItems(ctx, slot.ID, []string{c.ID, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, []int{0, 1, 2}, itemOrders(items))

	again, err := f.svc.ReorderItems(ctx, slot.ID, []string{c.ID, a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, items, again)
}

func TestReorderItemsRejectsMembershipMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())
	a, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "X"})
	require.NoError(t, err)
	b, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "Y"})
	require.NoError(t, err)

	for name, ids := range map[string][]string{
		"missing":    {a.ID},
		"unexpected": {a.ID, b.ID, "other"},
		"duplicated": {a.ID, a.ID, b.ID},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.ReorderItems(ctx, slot.ID, ids)
			var inv *InvalidOrderError
			require.ErrorAs(t, err, &inv)
		})
	}

	items, err := f.svc.ListItems(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, []string{items[0].ID, items[1].ID})
}

func TestItemOrderStaysDense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())

	var ids []string
	for _, asset := range []string{"X", "Y", "Z"} {
		it, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: asset})
		require.NoError(t, err)
		ids = append(ids, it.ID)
	}

	require.NoError(t, f.svc.RemoveItem(ctx, slot.ID, ids[1]))
	items, err := f.svc.ListItems(ctx, slot.ID)
	require.NoError(t, err)
	requireDense(t, itemOrders(items))

	_, err = f.svc.ReorderItems(ctx, slot.ID, []string{ids[2], ids[0]})
	require.NoError(t, err)
	it, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "Y"})
	require.NoError(t, err)
	assert.Equal(t, 2, it.SortOrder)

	require.NoError(t, f.svc.RemoveItem(ctx, slot.ID, ids[2]))
	items, err = f.svc.ListItems(ctx, slot.ID)
	require.NoError(t, err)
	requireDense(t, itemOrders(items))
	assert.Equal(t, []string{ids[0], it.ID}, []string{items[0].ID, items[1].ID})

	err = f.svc.RemoveItem(ctx, slot.ID, ids[2])
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "item", nf.Kind)
}

func TestAtMostOneDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, SlotInput{Name: "Fallback", Type: model.SlotTypeDefault})
	assert.Equal(t, []string{first.ID}, f.defaults(t))

	second := f.create(t, SlotInput{Type: model.SlotTypeDefault})
	assert.Equal(t, []string{second.ID}, f.defaults(t))

	flagged := businessHours()
	flagged.IsDefault = true
	third := f.create(t, flagged)
	assert.Equal(t, []string{third.ID}, f.defaults(t))

	_, err := f.svc.UpdateSlot(ctx, first.ID, SlotPatch{IsDefault: ptr(true)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, f.defaults(t))

	dormant, err := f.svc.GetSlot(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, dormant.Dormant())

	// Renaming a dormant default leaves the flag where it is.
	renamed, err := f.svc.UpdateSlot(ctx, second.ID, SlotPatch{Name: ptr("Old fallback")}, nil)
	require.NoError(t, err)
	assert.False(t, renamed.IsDefault)
	assert.Equal(t, []string{first.ID}, f.defaults(t))
}

func TestDeleteDefaultLeavesNoFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fallback := f.create(t, SlotInput{Name: "Fallback", Type: model.SlotTypeDefault})
	f.create(t, SlotInput{
		Name: "Evening", Type: model.SlotTypeTime,
		TimeFrom: tod(18, 0), TimeTo: tod(22, 0), Days: model.AllWeekdays(),
	})

	require.NoError(t, f.svc.DeleteSlot(ctx, fallback.ID, nil))

	status, err := f.svc.GetStatus(ctx, testNow)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Nil(t, status.CurrentSlot)
	assert.False(t, status.UsingDefault)
	require.NotNil(t, status.NextChangeAt)
	assert.Equal(t, time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC), *status.NextChangeAt)

	err = f.svc.DeleteSlot(ctx, fallback.ID, nil)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSlotOrderCompactsOnDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, businessHours())
	b := f.create(t, SlotInput{Name: "Fallback", Type: model.SlotTypeDefault})
	c := f.create(t, SlotInput{Name: "Late", Type: model.SlotTypeEvent, TimeFrom: tod(21, 0), Recurrence: model.RecurrenceDaily})
	assert.Equal(t, []int{0, 1, 2}, []int{a.SortOrder, b.SortOrder, c.SortOrder})
	assert.Equal(t, model.AllWeekdays(), c.Days)

	require.NoError(t, f.svc.DeleteSlot(ctx, b.ID, nil))
	slots, err := f.svc.ListSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, a.ID, slots[0].ID)
	assert.Equal(t, c.ID, slots[1].ID)
	requireDense(t, []int{slots[0].SortOrder, slots[1].SortOrder})
}

func TestUpdateSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())
	require.Equal(t, 1, slot.Version)

	t.Run("stale version", func(t *testing.T) {
		_, err := f.svc.UpdateSlot(ctx, slot.ID, SlotPatch{Name: ptr("Renamed")}, ptr(7))
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("partial update", func(t *testing.T) {
		updated, err := f.svc.UpdateSlot(ctx, slot.ID, SlotPatch{
			Name:    ptr("Renamed"),
			EndDate: model.Some(model.DateOf(testNow.AddDate(0, 1, 0))),
		}, ptr(1))
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, *tod(9, 0), *updated.TimeFrom)
		require.NotNil(t, updated.EndDate)
	})

	t.Run("clear nullable field", func(t *testing.T) {
		updated, err := f.svc.UpdateSlot(ctx, slot.ID, SlotPatch{EndDate: model.Null[model.Date]()}, nil)
		require.NoError(t, err)
		assert.Nil(t, updated.EndDate)
	})

	t.Run("invalid result is rejected whole", func(t *testing.T) {
		_, err := f.svc.UpdateSlot(ctx, slot.ID, SlotPatch{
			TimeTo: model.Some(model.NewTimeOfDay(8, 0, 0)),
			Days:   &model.Weekdays{},
		}, nil)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		fields := verr.ByField()
		assert.Contains(t, fields, "time_to")
		assert.Contains(t, fields, "days_of_week")

		cur, err := f.svc.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, *tod(18, 0), *cur.TimeTo)
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := f.svc.UpdateSlot(ctx, "missing", SlotPatch{Name: ptr("x")}, nil)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestUpdateItemDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())
	item, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "X"})
	require.NoError(t, err)
	assert.Equal(t, 15, *item.EffectiveDuration())

	updated, err := f.svc.UpdateItem(ctx, slot.ID, item.ID, ItemPatch{DurationOverride: model.Some(30)})
	require.NoError(t, err)
	assert.Equal(t, 30, *updated.EffectiveDuration())

	cleared, err := f.svc.UpdateItem(ctx, slot.ID, item.ID, ItemPatch{DurationOverride: model.Null[int]()})
	require.NoError(t, err)
	assert.Nil(t, cleared.DurationOverride)
	assert.Equal(t, 15, *cleared.EffectiveDuration())

	_, err = f.svc.UpdateItem(ctx, slot.ID, item.ID, ItemPatch{Volume: model.Some(150)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.svc.UpdateItem(ctx, slot.ID, "missing", ItemPatch{Mute: ptr(true)})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "item", nf.Kind)
}

func TestDanglingAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())
	_, err := f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: "X"})
	require.NoError(t, err)

	f.assets.Delete("X")

	got, err := f.svc.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Dangling)
	assert.Nil(t, got.Items[0].Asset)
	assert.Nil(t, got.Items[0].EffectiveDuration())
}

func TestStatusCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetStatus(ctx, testNow)
	require.NoError(t, err)
	assert.False(t, first.Enabled)

	// Written behind the service's back, so nothing invalidates the cache.
	require.NoError(t, f.store.InTx(ctx, func(tx db.Tx) error {
		s := model.Slot{ID: "direct", Name: "Direct", Type: model.SlotTypeDefault, IsDefault: true, Days: model.Weekdays{}}
		return tx.InsertSlot(ctx, &s)
	}))

	cached, err := f.svc.GetStatus(ctx, testNow.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, cached.Enabled)

	expired, err := f.svc.GetStatus(ctx, testNow.Add(DefaultCacheTTL))
	require.NoError(t, err)
	assert.True(t, expired.Enabled)
	assert.Equal(t, "direct", expired.CurrentSlotID())

	// A write through the service is visible immediately.
	slot := f.create(t, businessHours())
	fresh, err := f.svc.GetStatus(ctx, testNow.Add(DefaultCacheTTL))
	require.NoError(t, err)
	assert.Equal(t, slot.ID, fresh.CurrentSlotID())
}

func TestStatusCacheExpiresAtBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := model.NewTimeOfDay(13, 0, 30)
	f.create(t, SlotInput{Name: "Soon", Type: model.SlotTypeEvent, TimeFrom: &start, StartDate: today()})

	before, err := f.svc.GetStatus(ctx, testNow)
	require.NoError(t, err)
	assert.Nil(t, before.CurrentSlot)
	require.NotNil(t, before.NextChangeAt)

	after, err := f.svc.GetStatus(ctx, *before.NextChangeAt)
	require.NoError(t, err)
	require.NotNil(t, after.CurrentSlot)
	assert.Equal(t, "Soon", after.CurrentSlot.Name)
}

func TestWritesNotifyPlayers(t *testing.T) {
	f := newFixture(t)
	f.create(t, businessHours())

	assert.Eventually(t, func() bool {
		msgs := f.pub.ofType(notify.MessageScheduleUpdated)
		return len(msgs) == 1 && msgs[0].Reason == "create_slot"
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribersRunAfterWrites(t *testing.T) {
	f := newFixture(t)
	calls := 0
	unsubscribe := f.svc.Subscribe(func() { calls++ })

	f.create(t, businessHours())
	_, err := f.svc.CreateSlot(context.Background(), SlotInput{Type: model.SlotTypeTime})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	unsubscribe()
	f.create(t, SlotInput{Type: model.SlotTypeDefault})
	assert.Equal(t, 1, calls)
}

func TestConcurrentItemWritesStayDense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, businessHours())

	const n = 30
	for i := 0; i < n; i++ {
		f.assets.Put(model.Asset{ID: assetID(i), Duration: 5})
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.svc.AddItem(ctx, slot.ID, ItemInput{AssetID: assetID(i)})
		}(i)
	}
	wg.Wait()

	items, err := f.svc.ListItems(ctx, slot.ID)
	require.NoError(t, err)
	require.Len(t, items, n)
	requireDense(t, itemOrders(items))

	for i := 0; i < n; i += 3 {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := f.svc.RemoveItem(ctx, slot.ID, id)
			if err != nil && !errors.As(err, new(*NotFoundError)) {
				t.Error(err)
			}
		}(items[i].ID)
	}
	wg.Wait()

	items, err = f.svc.ListItems(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, items, n-10)
	requireDense(t, itemOrders(items))
}

func assetID(i int) string {
	return "asset-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func ptr[T any](v T) *T { return &v }

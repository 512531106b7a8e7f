package schedule

import (
	"context"
	"sync"
	"sync/atomic"
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

// gatedStore counts slot listings and holds them until release is closed.
type gatedStore struct {
	*db.MemoryStore
	lists   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) ListSlots(ctx context.Context) ([]model.Slot, error) {
	g.lists.Add(1)
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.MemoryStore.ListSlots(ctx)
}

// racingCache runs beforeSet once, ahead of storing, to land a write between the
// service's generation check and the cache write.
type racingCache struct {
	*cache.Memory
	beforeSet func()
	once      sync.Once
}

func (r *racingCache) Set(ctx context.Context, status model.ScheduleStatus) error {
	r.once.Do(func() {
		if r.beforeSet != nil {
			r.beforeSet()
		}
	})
	return r.Memory.Set(ctx, status)
}

func newServiceWith(store db.Store, statusCache cache.StatusCache) *Service {
	repo := NewRepository(store, ordering.NewManager(), zerolog.Nop())
	return NewService(repo, db.NewMemoryAssets(), statusCache, notify.Nop{}, Options{
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
	}, zerolog.Nop())
}

func TestConcurrentStatusMissesResolveOnce(t *testing.T) {
	store := &gatedStore{
		MemoryStore: db.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc := newServiceWith(store, cache.NewMemory())
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	results := make([]model.ScheduleStatus, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct instants inside the same second.
			results[i], errs[i] = svc.GetStatus(ctx, testNow.Add(time.Duration(i)*time.Millisecond))
		}(i)
	}

	<-store.entered
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Equal(t, int32(1), store.lists.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestStatusAfterWriteIsNotShared(t *testing.T) {
	store := &gatedStore{
		MemoryStore: db.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	close(store.release)
	svc := newServiceWith(store, cache.NewMemory())
	ctx := context.Background()

	before, err := svc.GetStatus(ctx, testNow)
	require.NoError(t, err)
	assert.False(t, before.Enabled)

	_, err = svc.CreateSlot(ctx, SlotInput{Name: "Fallback", Type: model.SlotTypeDefault})
	require.NoError(t, err)

	after, err := svc.GetStatus(ctx, testNow)
	require.NoError(t, err)
	assert.True(t, after.Enabled)
	assert.Equal(t, int32(2), store.lists.Load())
}

func TestWriteDuringCacheFillLeavesCacheEmpty(t *testing.T) {
	statusCache := &racingCache{Memory: cache.NewMemory()}
	svc := newServiceWith(db.NewMemoryStore(), statusCache)
	ctx := context.Background()

	statusCache.beforeSet = func() {
		_, err := svc.CreateSlot(ctx, SlotInput{Name: "Fallback", Type: model.SlotTypeDefault})
		require.NoError(t, err)
	}

	stale, err := svc.GetStatus(ctx, testNow)
	require.NoError(t, err)
	assert.False(t, stale.Enabled, "resolved before the write")

	_, ok := statusCache.Memory.Get(ctx)
	assert.False(t, ok, "stale status must not stay cached")

	current, err := svc.GetStatus(ctx, testNow)
	require.NoError(t, err)
	assert.True(t, current.Enabled)
	assert.True(t, current.UsingDefault)
}

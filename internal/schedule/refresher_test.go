package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/notify"
)

func TestRefresherPublishesSlotChanges(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRefresher(f.svc, "@every 1h", zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Initial resolution is published even though nothing is scheduled.
	require.Eventually(t, func() bool {
		return len(f.pub.ofType(notify.MessageStatus)) == 1
	}, time.Second, 10*time.Millisecond)
	first := f.pub.ofType(notify.MessageStatus)[0]
	assert.False(t, first.Enabled)

	slot := f.create(t, businessHours())
	require.Eventually(t, func() bool {
		msgs := f.pub.ofType(notify.MessageStatus)
		return len(msgs) == 2 && msgs[1].SlotID == slot.ID
	}, time.Second, 10*time.Millisecond)

	// A write that does not change the active slot publishes no new status.
	_, err := f.svc.UpdateSlot(ctx, slot.ID, SlotPatch{Name: ptr("Open")}, nil)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.pub.ofType(notify.MessageStatus), 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresherRejectsBadSpec(t *testing.T) {
	f := newFixture(t)
	r := NewRefresher(f.svc, "not a schedule", zerolog.Nop())
	assert.Error(t, r.Run(context.Background()))
}

package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/notify"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/telemetry"
)

const DefaultRefreshSpec = "@every 1m"

// maxDeadline bounds the boundary timer; beyond it the periodic refresh takes over.
const maxDeadline = 24 * time.Hour

// Refresher keeps the cached status current without a request having to pay for
// resolution. It re-resolves on a cron schedule, right after every write, and at
// the next boundary, and publishes the status to players whenever the active slot
// changes.
type Refresher struct {
	svc    *Service
	spec   string
	logger zerolog.Logger

	kick     chan struct{}
	deadline *time.Timer

	observed bool
	lastSlot string
	lastDef  bool
}

func NewRefresher(svc *Service, spec string, logger zerolog.Logger) *Refresher {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	return &Refresher{
		svc:    svc,
		spec:   spec,
		logger: logger.With().Str("component", "schedule_refresher").Logger(),
		kick:   make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled. All refreshes run on the calling goroutine.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.svc.Location()))
	if _, err := c.AddFunc(r.spec, r.trigger); err != nil {
		return fmt.Errorf("invalid refresh spec %q: %w", r.spec, err)
	}
	unsubscribe := r.svc.Subscribe(r.trigger)
	defer unsubscribe()

	c.Start()
	defer func() { <-c.Stop().Done() }()
	r.logger.Info().Str("spec", r.spec).Msg("schedule refresher started")

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			if r.deadline != nil {
				r.deadline.Stop()
			}
			r.logger.Info().Msg("schedule refresher stopped")
			return nil
		case <-r.kick:
			r.refresh(ctx)
		}
	}
}

// trigger never blocks; a pending kick already covers the new one.
func (r *Refresher) trigger() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	status, err := r.svc.Refresh(ctx)
	if err != nil {
		telemetry.RefreshErrorsTotal.Inc()
		r.logger.Error().Err(err).Msg("schedule refresh failed")
		return
	}
	r.observe(ctx, status)
	r.arm(status)
}

func (r *Refresher) observe(ctx context.Context, status model.ScheduleStatus) {
	if status.UsingDefault {
		telemetry.UsingDefault.Set(1)
	} else {
		telemetry.UsingDefault.Set(0)
	}

	slotID := status.CurrentSlotID()
	if r.observed && slotID == r.lastSlot && status.UsingDefault == r.lastDef {
		return
	}
	if r.observed {
		telemetry.TransitionsTotal.Inc()
		r.logger.Info().Str("from", r.lastSlot).Str("to", slotID).Bool("using_default", status.UsingDefault).
			Msg("active slot changed")
	}
	r.observed, r.lastSlot, r.lastDef = true, slotID, status.UsingDefault

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.svc.notifier.Publish(pubCtx, notify.StatusMessage(status, r.svc.Now())); err != nil {
		r.logger.Warn().Err(err).Str("slot_id", slotID).Msg("failed to publish schedule status")
	}
}

// arm schedules a refresh for the moment the active slot next changes.
func (r *Refresher) arm(status model.ScheduleStatus) {
	if r.deadline != nil {
		r.deadline.Stop()
		r.deadline = nil
	}
	if status.NextChangeAt == nil {
		return
	}
	wait := status.NextChangeAt.Sub(r.svc.Now())
	if wait <= 0 || wait > maxDeadline {
		return
	}
	r.deadline = time.AfterFunc(wait, r.trigger)
}

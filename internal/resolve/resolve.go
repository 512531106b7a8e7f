// Package resolve decides which slot governs playback at an instant and when that
// decision will next change. Everything here is pure: no I/O, no clock reads.
package resolve

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// DefaultHorizon bounds the search for the next transition.
const DefaultHorizon = 7 * 24 * time.Hour

type Engine struct {
	horizon time.Duration
}

func New(horizon time.Duration) Engine {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return Engine{horizon: horizon}
}

func (e Engine) Horizon() time.Duration { return e.horizon }

// Resolve evaluates slots at now with the default horizon.
func Resolve(slots []model.Slot, now time.Time) model.ScheduleStatus {
	return New(DefaultHorizon).Resolve(slots, now)
}

// Resolve computes the status at now. Wall-clock comparisons use now's location, so
// callers pass now already converted to the schedule's timezone.
func (e Engine) Resolve(slots []model.Slot, now time.Time) model.ScheduleStatus {
	status := model.ScheduleStatus{TotalSlots: len(slots), ComputedAt: now}
	if len(slots) == 0 {
		return status
	}
	status.Enabled = true

	candidates, fallback := partition(slots)
	winner := pick(candidates, now)

	switch {
	case winner != nil:
		status.CurrentSlot = copySlot(winner)
	case fallback != nil:
		status.CurrentSlot = copySlot(fallback)
		status.UsingDefault = true
	}

	if next, ok := e.nextChange(candidates, winner, now); ok {
		status.NextChangeAt = &next
	}
	return status
}

// partition splits out the slots that can win on their own window and the fallback.
// Dormant default-type slots belong to neither.
func partition(slots []model.Slot) (candidates []*model.Slot, fallback *model.Slot) {
	for i := range slots {
		s := &slots[i]
		switch {
		case s.IsDefault:
			if fallback == nil || s.SortOrder < fallback.SortOrder {
				fallback = s
			}
		case s.Type == model.SlotTypeTime, s.Type == model.SlotTypeEvent:
			candidates = append(candidates, s)
		}
	}
	return candidates, fallback
}

// pick returns the highest-ranked candidate whose window contains at, or nil.
func pick(candidates []*model.Slot, at time.Time) *model.Slot {
	var best *model.Slot
	for _, s := range candidates {
		if !Active(s, at) {
			continue
		}
		if best == nil || outranks(s, best) {
			best = s
		}
	}
	return best
}

// outranks orders candidates: event over time, then later time_from, then lower
// sort_order, then slot id.
func outranks(a, b *model.Slot) bool {
	if c := cmp.Compare(typeRank(a.Type), typeRank(b.Type)); c != 0 {
		return c > 0
	}
	if c := cmp.Compare(startOf(a), startOf(b)); c != 0 {
		return c > 0
	}
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return strings.Compare(a.ID, b.ID) < 0
}

func typeRank(t model.SlotType) int {
	if t == model.SlotTypeEvent {
		return 1
	}
	return 0
}

func startOf(s *model.Slot) model.TimeOfDay {
	if s.TimeFrom == nil {
		return model.Midnight
	}
	return *s.TimeFrom
}

// nextChange returns the first boundary inside the horizon at which a different
// candidate wins, or, while a slot is playing, the earlier start of any other
// candidate's window, even one that will not outrank the winner.
func (e Engine) nextChange(candidates []*model.Slot, winner *model.Slot, now time.Time) (time.Time, bool) {
	limit := now.Add(e.horizon)
	current := slotID(winner)

	var boundaries []time.Time
	add := func(t time.Time) {
		if t.After(now) && !t.After(limit) {
			boundaries = append(boundaries, t)
		}
	}

	var otherStart time.Time
	today := model.DateOf(now)
	days := int(e.horizon/(24*time.Hour)) + 1
	for _, s := range candidates {
		for d := 0; d <= days; d++ {
			w, ok := windowOn(s, today.AddDays(d), now.Location())
			if !ok {
				continue
			}
			add(w.start)
			add(w.end)
			if winner != nil && s != winner && w.start.After(now) && !w.start.After(limit) &&
				(otherStart.IsZero() || w.start.Before(otherStart)) {
				otherStart = w.start
			}
		}
	}

	slices.SortFunc(boundaries, func(a, b time.Time) int { return a.Compare(b) })
	boundaries = slices.CompactFunc(boundaries, func(a, b time.Time) bool { return a.Equal(b) })

	var change time.Time
	for _, b := range boundaries {
		if slotID(pick(candidates, b)) != current {
			change = b
			break
		}
	}

	switch {
	case otherStart.IsZero() && change.IsZero():
		return time.Time{}, false
	case otherStart.IsZero():
		return change, true
	case change.IsZero() || otherStart.Before(change):
		return otherStart, true
	default:
		return change, true
	}
}

func slotID(s *model.Slot) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func copySlot(s *model.Slot) *model.Slot {
	c := s.Clone()
	return &c
}

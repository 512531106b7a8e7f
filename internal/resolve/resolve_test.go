package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// 2026-10-19 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

func clock(hour, minute int) *model.TimeOfDay {
	t := model.NewTimeOfDay(hour, minute, 0)
	return &t
}

func date(day int) *model.Date {
	return &model.Date{Year: 2026, Month: time.October, Day: day}
}

func timeSlot(id string, order int, from, to *model.TimeOfDay, days ...int) model.Slot {
	return model.Slot{ID: id, Name: id, Type: model.SlotTypeTime, TimeFrom: from, TimeTo: to, Days: days, SortOrder: order}
}

func eventSlot(id string, order int, from *model.TimeOfDay, days ...int) model.Slot {
	return model.Slot{ID: id, Name: id, Type: model.SlotTypeEvent, TimeFrom: from, Days: days, NoLoop: true, SortOrder: order}
}

func onceEvent(id string, order int, from *model.TimeOfDay, day int) model.Slot {
	s := eventSlot(id, order, from)
	s.StartDate = date(day)
	return s
}

func defaultSlot(id string, order int) model.Slot {
	return model.Slot{ID: id, Name: id, Type: model.SlotTypeDefault, IsDefault: true, SortOrder: order}
}

var weekdays = []int{1, 2, 3, 4, 5}

func requireNext(t *testing.T, want time.Time, status model.ScheduleStatus) {
	t.Helper()
	require.NotNil(t, status.NextChangeAt, "expected a next change")
	assert.True(t, want.Equal(*status.NextChangeAt), "next change: want %s, got %s", want, *status.NextChangeAt)
}

func TestResolveEmptyIsDisabled(t *testing.T) {
	status := Resolve(nil, at(19, 10, 0))
	assert.False(t, status.Enabled)
	assert.Nil(t, status.CurrentSlot)
	assert.Nil(t, status.NextChangeAt)
	assert.False(t, status.UsingDefault)
	assert.Zero(t, status.TotalSlots)
}

func TestResolveOnlyDefault(t *testing.T) {
	status := Resolve([]model.Slot{defaultSlot("fallback", 0)}, at(19, 3, 0))
	assert.True(t, status.Enabled)
	assert.True(t, status.UsingDefault)
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "fallback", status.CurrentSlot.ID)
	assert.Nil(t, status.NextChangeAt)
	assert.Equal(t, 1, status.TotalSlots)
}

func TestResolveSelection(t *testing.T) {
	business := timeSlot("business", 0, clock(9, 0), clock(18, 0), weekdays...)
	lunch := timeSlot("lunch", 1, clock(12, 0), clock(14, 0), weekdays...)
	launch := onceEvent("launch", 2, clock(12, 0), 19)
	fallback := defaultSlot("fallback", 3)

	tests := []struct {
		name         string
		slots        []model.Slot
		now          time.Time
		want         string
		usingDefault bool
		next         time.Time
	}{
		{
			name:  "single time slot until its end",
			slots: []model.Slot{business},
			now:   at(19, 10, 0),
			want:  "business",
			next:  at(19, 18, 0),
		},
		{
			name:  "event outranks time",
			slots: []model.Slot{business, launch},
			now:   at(19, 13, 0),
			want:  "launch",
			next:  at(20, 0, 0),
		},
		{
			name:  "time slot until event starts",
			slots: []model.Slot{business, launch},
			now:   at(19, 10, 0),
			want:  "business",
			next:  at(19, 12, 0),
		},
		{
			name:  "later time_from wins within a type",
			slots: []model.Slot{business, lunch},
			now:   at(19, 13, 0),
			want:  "lunch",
			next:  at(19, 14, 0),
		},
		{
			name:  "earlier slot resumes after the override",
			slots: []model.Slot{business, lunch},
			now:   at(19, 14, 0),
			want:  "business",
			next:  at(19, 18, 0),
		},
		{
			name:         "default when nothing applies",
			slots:        []model.Slot{business, fallback},
			now:          at(24, 10, 0),
			want:         "fallback",
			usingDefault: true,
			next:         at(26, 9, 0),
		},
		{
			name:         "window end is exclusive",
			slots:        []model.Slot{business, fallback},
			now:          at(19, 18, 0),
			want:         "fallback",
			usingDefault: true,
			next:         at(20, 9, 0),
		},
		{
			name:  "window start is inclusive",
			slots: []model.Slot{business},
			now:   at(19, 9, 0),
			want:  "business",
			next:  at(19, 18, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Resolve(tt.slots, tt.now)
			require.NotNil(t, status.CurrentSlot)
			assert.Equal(t, tt.want, status.CurrentSlot.ID)
			assert.Equal(t, tt.usingDefault, status.UsingDefault)
			assert.True(t, status.Enabled)
			requireNext(t, tt.next, status)
		})
	}
}

func TestResolveTieBreaksOnSortOrder(t *testing.T) {
	a := timeSlot("a", 4, clock(9, 0), clock(17, 0), weekdays...)
	b := timeSlot("b", 1, clock(9, 0), clock(12, 0), weekdays...)

	status := Resolve([]model.Slot{a, b}, at(19, 10, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "b", status.CurrentSlot.ID)
	requireNext(t, at(19, 12, 0), status)
}

func TestResolveNothingScheduledWithoutDefault(t *testing.T) {
	business := timeSlot("business", 0, clock(9, 0), clock(18, 0), weekdays...)

	status := Resolve([]model.Slot{business}, at(19, 20, 0))
	assert.True(t, status.Enabled)
	assert.Nil(t, status.CurrentSlot)
	assert.False(t, status.UsingDefault)
	requireNext(t, at(20, 9, 0), status)
}

func TestResolveDateBounds(t *testing.T) {
	s := timeSlot("campaign", 0, clock(9, 0), clock(18, 0), 1, 2, 3, 4, 5, 6, 7)
	s.StartDate = date(21)
	s.EndDate = date(22)

	assert.Nil(t, Resolve([]model.Slot{s}, at(20, 10, 0)).CurrentSlot, "before start_date")
	assert.NotNil(t, Resolve([]model.Slot{s}, at(21, 10, 0)).CurrentSlot)
	assert.NotNil(t, Resolve([]model.Slot{s}, at(22, 10, 0)).CurrentSlot, "end_date is inclusive")
	assert.Nil(t, Resolve([]model.Slot{s}, at(23, 10, 0)).CurrentSlot, "after end_date")

	status := Resolve([]model.Slot{s}, at(22, 12, 0))
	requireNext(t, at(22, 18, 0), status)

	status = Resolve([]model.Slot{s}, at(22, 19, 0))
	assert.Nil(t, status.NextChangeAt, "nothing left to start")
}

func TestResolveHorizon(t *testing.T) {
	far := onceEvent("far", 0, clock(8, 0), 30)

	status := Resolve([]model.Slot{far}, at(19, 8, 0))
	assert.Nil(t, status.NextChangeAt, "start is beyond seven days")

	status = New(14*24*time.Hour).Resolve([]model.Slot{far}, at(19, 8, 0))
	requireNext(t, at(30, 8, 0), status)
}

func TestResolveOvernightCoverageIsTwoSlots(t *testing.T) {
	late := timeSlot("late", 0, clock(22, 0), clock(24, 0), 1)
	early := timeSlot("early", 1, clock(0, 0), clock(6, 0), 2)
	slots := []model.Slot{late, early}

	status := Resolve(slots, at(19, 23, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "late", status.CurrentSlot.ID)
	requireNext(t, at(20, 0, 0), status)

	status = Resolve(slots, at(20, 1, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "early", status.CurrentSlot.ID)
	requireNext(t, at(20, 6, 0), status)
}

func TestResolveContinuousSlotNeverChanges(t *testing.T) {
	always := timeSlot("always", 0, clock(0, 0), clock(24, 0), 1, 2, 3, 4, 5, 6, 7)

	status := Resolve([]model.Slot{always}, at(19, 12, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "always", status.CurrentSlot.ID)
	assert.Nil(t, status.NextChangeAt)
}

func TestResolveRecurringEvents(t *testing.T) {
	weekly := eventSlot("standup", 0, clock(19, 0), 1, 3)

	assert.NotNil(t, Resolve([]model.Slot{weekly}, at(21, 20, 0)).CurrentSlot, "wednesday")
	assert.Nil(t, Resolve([]model.Slot{weekly}, at(20, 20, 0)).CurrentSlot, "tuesday")
	assert.Nil(t, Resolve([]model.Slot{weekly}, at(21, 18, 59)).CurrentSlot, "before start")

	status := Resolve([]model.Slot{weekly}, at(19, 20, 0))
	requireNext(t, at(20, 0, 0), status)
}

func TestResolveLaterEventSupersedesEarlierEvent(t *testing.T) {
	morning := eventSlot("morning", 0, clock(8, 0), 1, 2, 3, 4, 5, 6, 7)
	evening := eventSlot("evening", 1, clock(18, 0), 1, 2, 3, 4, 5, 6, 7)
	slots := []model.Slot{morning, evening}

	status := Resolve(slots, at(19, 12, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "morning", status.CurrentSlot.ID)
	requireNext(t, at(19, 18, 0), status)

	status = Resolve(slots, at(19, 18, 30))
	assert.Equal(t, "evening", status.CurrentSlot.ID)
	// Both events end at midnight; nothing runs until the morning event starts again.
	requireNext(t, at(20, 0, 0), status)
}

func TestResolveLowerRankedStartIsAChange(t *testing.T) {
	launch := onceEvent("launch", 0, clock(12, 0), 19)
	afternoon := timeSlot("afternoon", 1, clock(14, 0), clock(16, 0), weekdays...)
	slots := []model.Slot{launch, afternoon}

	status := Resolve(slots, at(19, 13, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "launch", status.CurrentSlot.ID)
	requireNext(t, at(19, 14, 0), status)

	// Once the other window has started, the winner's own end comes next.
	status = Resolve(slots, at(19, 14, 0))
	assert.Equal(t, "launch", status.CurrentSlot.ID)
	requireNext(t, at(20, 0, 0), status)
}

func TestResolveOtherStartWhileWinnerNeverEnds(t *testing.T) {
	allDay := eventSlot("all-day", 0, clock(0, 0), 1, 2, 3, 4, 5, 6, 7)
	afternoon := timeSlot("afternoon", 1, clock(14, 0), clock(16, 0), weekdays...)

	status := Resolve([]model.Slot{allDay, afternoon}, at(24, 10, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "all-day", status.CurrentSlot.ID)
	requireNext(t, at(26, 14, 0), status)

	status = Resolve([]model.Slot{allDay}, at(24, 10, 0))
	assert.Nil(t, status.NextChangeAt)
}

func TestResolveWeeklyFullWeekMatchesDaily(t *testing.T) {
	daily := eventSlot("e", 0, clock(7, 0), 1, 2, 3, 4, 5, 6, 7)
	weekly := eventSlot("e", 0, clock(7, 0), 7, 6, 5, 4, 3, 2, 1)

	assert.Equal(t, model.RecurrenceDaily, weekly.Recurrence())
	for _, now := range []time.Time{at(19, 6, 0), at(20, 7, 0), at(25, 23, 0)} {
		a := Resolve([]model.Slot{daily}, now)
		b := Resolve([]model.Slot{weekly}, now)
		assert.Equal(t, a.CurrentSlotID(), b.CurrentSlotID())
		assert.Equal(t, a.NextChangeAt, b.NextChangeAt)
	}
}

func TestResolveDefaultFlaggedTimeSlotIsOnlyFallback(t *testing.T) {
	flagged := timeSlot("flagged", 0, clock(9, 0), clock(10, 0), weekdays...)
	flagged.IsDefault = true
	dormant := model.Slot{ID: "dormant", Type: model.SlotTypeDefault, SortOrder: 1}

	status := Resolve([]model.Slot{flagged, dormant}, at(19, 12, 0))
	require.NotNil(t, status.CurrentSlot)
	assert.Equal(t, "flagged", status.CurrentSlot.ID)
	assert.True(t, status.UsingDefault)
	assert.Nil(t, status.NextChangeAt)
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	slots := []model.Slot{
		timeSlot("business", 0, clock(9, 0), clock(18, 0), weekdays...),
		onceEvent("launch", 1, clock(12, 0), 19),
		defaultSlot("fallback", 2),
	}
	before := make([]model.Slot, len(slots))
	for i, s := range slots {
		before[i] = s.Clone()
	}

	first := Resolve(slots, at(19, 13, 0))
	first.CurrentSlot.Name = "changed"
	second := Resolve(slots, at(19, 13, 0))

	assert.Equal(t, before, slots)
	assert.Equal(t, "launch", second.CurrentSlot.Name)
	assert.Equal(t, first.NextChangeAt, second.NextChangeAt)
}

func TestActive(t *testing.T) {
	s := timeSlot("business", 0, clock(9, 0), clock(18, 0), weekdays...)
	assert.True(t, Active(&s, at(19, 9, 0)))
	assert.False(t, Active(&s, at(19, 18, 0)))
	assert.False(t, Active(&s, at(24, 12, 0)), "saturday")

	d := defaultSlot("fallback", 0)
	assert.False(t, Active(&d, at(19, 12, 0)))
}

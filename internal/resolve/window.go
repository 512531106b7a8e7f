package resolve

import (
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

type window struct {
	start, end time.Time
}

func (w window) contains(t time.Time) bool {
	return !t.Before(w.start) && t.Before(w.end)
}

// AppliesOn reports whether the slot's date and weekday rules select day. Default
// slots apply on every day.
func AppliesOn(s *model.Slot, day model.Date) bool {
	if s.Type == model.SlotTypeDefault {
		return true
	}
	if s.StartDate != nil && day.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && day.After(*s.EndDate) {
		return false
	}
	if s.Type == model.SlotTypeEvent && len(s.Days) == 0 {
		// One-off event: only its start date.
		return s.StartDate != nil && day == *s.StartDate
	}
	return s.Days.Contains(day.ISOWeekday())
}

// windowOn returns the slot's active window on day. Time slots run [time_from, time_to).
// Events have no end of their own and run from time_from until midnight, where the
// next day's rules take over.
func windowOn(s *model.Slot, day model.Date, loc *time.Location) (window, bool) {
	if s.TimeFrom == nil || !AppliesOn(s, day) {
		return window{}, false
	}
	start := day.At(*s.TimeFrom, loc)
	switch s.Type {
	case model.SlotTypeTime:
		if s.TimeTo == nil || *s.TimeTo <= *s.TimeFrom {
			return window{}, false
		}
		return window{start: start, end: day.At(*s.TimeTo, loc)}, true
	case model.SlotTypeEvent:
		return window{start: start, end: day.AddDays(1).In(loc)}, true
	}
	return window{}, false
}

// Active reports whether the slot's own window contains at. Windows never cross
// midnight, so only at's calendar day needs checking.
func Active(s *model.Slot, at time.Time) bool {
	w, ok := windowOn(s, model.DateOf(at), at.Location())
	return ok && w.contains(at)
}

package model

import (
	"slices"
	"time"
)

type SlotType string

const (
	SlotTypeDefault SlotType = "default"
	SlotTypeTime    SlotType = "time"
	SlotTypeEvent   SlotType = "event"
)

func (t SlotType) Valid() bool {
	switch t {
	case SlotTypeDefault, SlotTypeTime, SlotTypeEvent:
		return true
	}
	return false
}

// Recurrence is derived from an event slot's day set; it is never stored.
type Recurrence string

const (
	RecurrenceOnce   Recurrence = "once"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

type Slot struct {
	ID        string     `db:"slot_id"      json:"slot_id"`
	Name      string     `db:"name"         json:"name"`
	Type      SlotType   `db:"slot_type"    json:"slot_type"`
	TimeFrom  *TimeOfDay `db:"time_from"    json:"time_from"`
	TimeTo    *TimeOfDay `db:"time_to"      json:"time_to"`
	Days      Weekdays   `db:"days_of_week" json:"days_of_week"`
	StartDate *Date      `db:"start_date"   json:"start_date"`
	EndDate   *Date      `db:"end_date"     json:"end_date"`
	IsDefault bool       `db:"is_default"   json:"is_default"`
	NoLoop    bool       `db:"no_loop"      json:"no_loop"`
	SortOrder int        `db:"sort_order"   json:"sort_order"`
	Version   int        `db:"version"      json:"version"`
	CreatedAt time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"   json:"updated_at"`
	Items     []SlotItem `db:"-"            json:"items"`
}

// Recurrence reports how an event slot repeats. Non-event slots report "".
// A weekly event covering all seven days is reported as daily.
func (s *Slot) Recurrence() Recurrence {
	if s.Type != SlotTypeEvent {
		return ""
	}
	switch {
	case len(s.Days) == 0:
		return RecurrenceOnce
	case s.Days.IsFullWeek():
		return RecurrenceDaily
	default:
		return RecurrenceWeekly
	}
}

// Dormant reports a default-type slot that lost its flag to another slot.
func (s *Slot) Dormant() bool {
	return s.Type == SlotTypeDefault && !s.IsDefault
}

// ContentDuration sums the effective durations of the slot's items. Items with no
// known duration count as zero.
func (s *Slot) ContentDuration() int {
	total := 0
	for _, it := range s.Items {
		if d := it.EffectiveDuration(); d != nil {
			total += *d
		}
	}
	return total
}

// Clone returns a deep copy, so callers may mutate it without aliasing the original.
func (s Slot) Clone() Slot {
	out := s
	out.TimeFrom = clonePtr(s.TimeFrom)
	out.TimeTo = clonePtr(s.TimeTo)
	out.StartDate = clonePtr(s.StartDate)
	out.EndDate = clonePtr(s.EndDate)
	out.Days = slices.Clone(s.Days)
	if s.Items != nil {
		out.Items = make([]SlotItem, len(s.Items))
		for i, it := range s.Items {
			out.Items[i] = it.Clone()
		}
	}
	return out
}

type SlotItem struct {
	ID               string    `db:"item_id"           json:"item_id"`
	SlotID           string    `db:"slot_id"           json:"slot_id"`
	AssetID          string    `db:"asset_id"          json:"asset_id"`
	SortOrder        int       `db:"sort_order"        json:"sort_order"`
	DurationOverride *int      `db:"duration_override" json:"duration_override"`
	Volume           *int      `db:"volume"            json:"volume"`
	Mute             bool      `db:"mute"              json:"mute"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`

	// Asset is filled in at read time from the asset catalog.
	Asset *Asset `db:"-" json:"asset,omitempty"`
	// Dangling is set when the catalog no longer knows AssetID.
	Dangling bool `db:"-" json:"dangling,omitempty"`
}

// EffectiveDuration is the override when present, otherwise the asset's own duration.
// It is nil when neither is known.
func (it SlotItem) EffectiveDuration() *int {
	if it.DurationOverride != nil {
		d := *it.DurationOverride
		return &d
	}
	if it.Asset != nil {
		d := it.Asset.Duration
		return &d
	}
	return nil
}

func (it SlotItem) Clone() SlotItem {
	out := it
	out.DurationOverride = clonePtr(it.DurationOverride)
	out.Volume = clonePtr(it.Volume)
	if it.Asset != nil {
		a := *it.Asset
		out.Asset = &a
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

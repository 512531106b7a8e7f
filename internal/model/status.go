package model

import "time"

// ScheduleStatus is derived from the slot set at an instant. It is never persisted.
type ScheduleStatus struct {
	Enabled      bool       `json:"schedule_enabled"`
	CurrentSlot  *Slot      `json:"current_slot"`
	NextChangeAt *time.Time `json:"next_change_at"`
	UsingDefault bool       `json:"using_default"`
	TotalSlots   int        `json:"total_slots"`

	// ComputedAt is the instant the status was resolved for.
	ComputedAt time.Time `json:"computed_at"`
}

// CurrentSlotID returns "" when nothing is active.
func (s ScheduleStatus) CurrentSlotID() string {
	if s.CurrentSlot == nil {
		return ""
	}
	return s.CurrentSlot.ID
}

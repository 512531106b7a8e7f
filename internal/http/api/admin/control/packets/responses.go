package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolve"
)

// ItemResponse flattens the catalog asset into the item.
type ItemResponse struct {
	ID                string    `json:"item_id"`
	SlotID            string    `json:"slot_id"`
	AssetID           string    `json:"asset_id"`
	SortOrder         int       `json:"sort_order"`
	DurationOverride  *int      `json:"duration_override"`
	Volume            *int      `json:"volume"`
	Mute              bool      `json:"mute"`
	AssetName         *string   `json:"asset_name"`
	AssetURI          *string   `json:"asset_uri"`
	AssetMimetype     *string   `json:"asset_mimetype"`
	AssetDuration     *int      `json:"asset_duration"`
	EffectiveDuration *int      `json:"effective_duration"`
	Dangling          bool      `json:"dangling"`
	CreatedAt         time.Time `json:"created_at"`
}

type SlotResponse struct {
	ID                string           `json:"slot_id"`
	Name              string           `json:"name"`
	SlotType          model.SlotType   `json:"slot_type"`
	TimeFrom          *model.TimeOfDay `json:"time_from"`
	TimeTo            *model.TimeOfDay `json:"time_to"`
	DaysOfWeek        model.Weekdays   `json:"days_of_week"`
	StartDate         *model.Date      `json:"start_date"`
	EndDate           *model.Date      `json:"end_date"`
	IsDefault         bool             `json:"is_default"`
	NoLoop            bool             `json:"no_loop"`
	Recurrence        model.Recurrence `json:"recurrence,omitempty"`
	SortOrder         int              `json:"sort_order"`
	Version           int              `json:"version"`
	ContentDuration   int              `json:"content_duration"`
	IsCurrentlyActive bool             `json:"is_currently_active"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Items             []ItemResponse   `json:"items"`
}

type StatusResponse struct {
	ScheduleEnabled bool          `json:"schedule_enabled"`
	CurrentSlot     *SlotResponse `json:"current_slot"`
	NextChangeAt    *time.Time    `json:"next_change_at"`
	UsingDefault    bool          `json:"using_default"`
	TotalSlots      int           `json:"total_slots"`
}

func NewItemResponse(it model.SlotItem) ItemResponse {
	out := ItemResponse{
		ID:                it.ID,
		SlotID:            it.SlotID,
		AssetID:           it.AssetID,
		SortOrder:         it.SortOrder,
		DurationOverride:  it.DurationOverride,
		Volume:            it.Volume,
		Mute:              it.Mute,
		EffectiveDuration: it.EffectiveDuration(),
		Dangling:          it.Dangling,
		CreatedAt:         it.CreatedAt,
	}
	if a := it.Asset; a != nil {
		out.AssetName = &a.Name
		out.AssetURI = &a.URI
		out.AssetMimetype = &a.Mimetype
		out.AssetDuration = &a.Duration
	}
	return out
}

func NewItemResponses(items []model.SlotItem) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = NewItemResponse(it)
	}
	return out
}

// NewSlotResponse maps s; IsCurrentlyActive is evaluated at now.
func NewSlotResponse(s model.Slot, now time.Time) SlotResponse {
	days := s.Days
	if days == nil {
		days = model.Weekdays{}
	}
	return SlotResponse{
		ID:                s.ID,
		Name:              s.Name,
		SlotType:          s.Type,
		TimeFrom:          s.TimeFrom,
		TimeTo:            s.TimeTo,
		DaysOfWeek:        days,
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		IsDefault:         s.IsDefault,
		NoLoop:            s.NoLoop,
		Recurrence:        s.Recurrence(),
		SortOrder:         s.SortOrder,
		Version:           s.Version,
		ContentDuration:   s.ContentDuration(),
		IsCurrentlyActive: resolve.Active(&s, now),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		Items:             NewItemResponses(s.Items),
	}
}

func NewSlotResponses(slots []model.Slot, now time.Time) []SlotResponse {
	out := make([]SlotResponse, len(slots))
	for i, s := range slots {
		out[i] = NewSlotResponse(s, now)
	}
	return out
}

// NewStatusResponse leaves ComputedAt out so that the body, and its ETag, only
// change when the status does.
func NewStatusResponse(st model.ScheduleStatus) StatusResponse {
	out := StatusResponse{
		ScheduleEnabled: st.Enabled,
		NextChangeAt:    st.NextChangeAt,
		UsingDefault:    st.UsingDefault,
		TotalSlots:      st.TotalSlots,
	}
	if st.CurrentSlot != nil {
		slot := NewSlotResponse(*st.CurrentSlot, st.ComputedAt)
		out.CurrentSlot = &slot
	}
	return out
}

package packets

import (
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/schedule"
)

// CreateSlotRequest carries the fields for every slot type; those a type does not
// use are ignored. Field rules are checked by the schedule package so that every
// violation is reported at once.
type CreateSlotRequest struct {
	Name       string           `json:"name"`
	SlotType   model.SlotType   `json:"slot_type"`
	TimeFrom   *model.TimeOfDay `json:"time_from"`
	TimeTo     *model.TimeOfDay `json:"time_to"`
	DaysOfWeek model.Weekdays   `json:"days_of_week"`
	StartDate  *model.Date      `json:"start_date"`
	EndDate    *model.Date      `json:"end_date"`
	IsDefault  bool             `json:"is_default"`
	NoLoop     bool             `json:"no_loop"`
	Recurrence model.Recurrence `json:"recurrence"`
}

func (r CreateSlotRequest) ToInput() schedule.SlotInput {
	return schedule.SlotInput{
		Name:       r.Name,
		Type:       r.SlotType,
		TimeFrom:   r.TimeFrom,
		TimeTo:     r.TimeTo,
		Days:       r.DaysOfWeek,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		IsDefault:  r.IsDefault,
		NoLoop:     r.NoLoop,
		Recurrence: r.Recurrence,
	}
}

// UpdateSlotRequest is a partial update. Absent keys keep their value; null clears
// the nullable ones.
type UpdateSlotRequest struct {
	Name       *string                         `json:"name,omitempty"`
	SlotType   *model.SlotType                 `json:"slot_type,omitempty"`
	TimeFrom   model.Optional[model.TimeOfDay] `json:"time_from,omitzero"`
	TimeTo     model.Optional[model.TimeOfDay] `json:"time_to,omitzero"`
	DaysOfWeek *model.Weekdays                 `json:"days_of_week,omitempty"`
	StartDate  model.Optional[model.Date]      `json:"start_date,omitzero"`
	EndDate    model.Optional[model.Date]      `json:"end_date,omitzero"`
	IsDefault  *bool                           `json:"is_default,omitempty"`
	NoLoop     *bool                           `json:"no_loop,omitempty"`
	Recurrence *model.Recurrence               `json:"recurrence,omitempty"`
}

func (r UpdateSlotRequest) ToPatch() schedule.SlotPatch {
	return schedule.SlotPatch{
		Name:       r.Name,
		Type:       r.SlotType,
		TimeFrom:   r.TimeFrom,
		TimeTo:     r.TimeTo,
		Days:       r.DaysOfWeek,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		IsDefault:  r.IsDefault,
		NoLoop:     r.NoLoop,
		Recurrence: r.Recurrence,
	}
}

type AddItemRequest struct {
	AssetID          string `json:"asset_id"`
	DurationOverride *int   `json:"duration_override,omitempty"`
	Volume           *int   `json:"volume,omitempty"`
	Mute             bool   `json:"mute"`
}

func (r AddItemRequest) ToInput() schedule.ItemInput {
	return schedule.ItemInput{
		AssetID:          r.AssetID,
		DurationOverride: r.DurationOverride,
		Volume:           r.Volume,
		Mute:             r.Mute,
	}
}

type UpdateItemRequest struct {
	DurationOverride model.Optional[int] `json:"duration_override,omitzero"`
	Volume           model.Optional[int] `json:"volume,omitzero"`
	Mute             *bool               `json:"mute,omitempty"`
}

func (r UpdateItemRequest) ToPatch() schedule.ItemPatch {
	return schedule.ItemPatch{
		DurationOverride: r.DurationOverride,
		Volume:           r.Volume,
		Mute:             r.Mute,
	}
}

type ReorderItemsRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required"`
}

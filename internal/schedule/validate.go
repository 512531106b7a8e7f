package schedule

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// SlotInput carries every writable slot field. Recurrence is only a hint for event
// slots; what is stored is the day set it expands to.
type SlotInput struct {
	Name       string           `json:"name"         validate:"max=255"`
	Type       model.SlotType   `json:"slot_type"    validate:"required,oneof=default time event"`
	TimeFrom   *model.TimeOfDay `json:"time_from"    validate:"omitempty,min=0,max=86400"`
	TimeTo     *model.TimeOfDay `json:"time_to"      validate:"omitempty,min=0,max=86400"`
	Days       model.Weekdays   `json:"days_of_week" validate:"omitempty,dive,min=1,max=7"`
	StartDate  *model.Date      `json:"start_date"`
	EndDate    *model.Date      `json:"end_date"`
	IsDefault  bool             `json:"is_default"`
	NoLoop     bool             `json:"no_loop"`
	Recurrence model.Recurrence `json:"recurrence"   validate:"omitempty,oneof=once daily weekly"`
}

// SlotPatch is a partial update. Nil pointers and unset Optionals keep the stored value.
type SlotPatch struct {
	Name       *string
	Type       *model.SlotType
	TimeFrom   model.Optional[model.TimeOfDay]
	TimeTo     model.Optional[model.TimeOfDay]
	Days       *model.Weekdays
	StartDate  model.Optional[model.Date]
	EndDate    model.Optional[model.Date]
	IsDefault  *bool
	NoLoop     *bool
	Recurrence *model.Recurrence
}

func inputFromSlot(s model.Slot) SlotInput {
	c := s.Clone()
	return SlotInput{
		Name:      c.Name,
		Type:      c.Type,
		TimeFrom:  c.TimeFrom,
		TimeTo:    c.TimeTo,
		Days:      c.Days,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		IsDefault: c.IsDefault,
		NoLoop:    c.NoLoop,
	}
}

// apply overlays the patch on in. Switching type drops the fields the new type
// does not use, unless the patch sets them again.
func (p SlotPatch) apply(in SlotInput) SlotInput {
	if p.Type != nil && *p.Type != in.Type {
		in.Type = *p.Type
		if in.Type == model.SlotTypeEvent {
			in.TimeTo = nil
		}
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	in.TimeFrom = p.TimeFrom.Or(in.TimeFrom)
	in.TimeTo = p.TimeTo.Or(in.TimeTo)
	if p.Days != nil {
		in.Days = *p.Days
	}
	in.StartDate = p.StartDate.Or(in.StartDate)
	in.EndDate = p.EndDate.Or(in.EndDate)
	if p.IsDefault != nil {
		in.IsDefault = *p.IsDefault
	}
	if p.NoLoop != nil {
		in.NoLoop = *p.NoLoop
	}
	if p.Recurrence != nil {
		in.Recurrence = *p.Recurrence
	}
	return in
}

type ItemInput struct {
	AssetID          string `json:"asset_id" validate:"required,max=255"`
	DurationOverride *int   `json:"duration_override"`
	Volume           *int   `json:"volume"`
	Mute             bool   `json:"mute"`
}

type ItemPatch struct {
	DurationOverride model.Optional[int]
	Volume           model.Optional[int]
	Mute             *bool
}

// Validator checks writes before they reach storage. Tag rules go through
// go-playground/validator with English messages; the rules that span fields are
// checked by hand.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	// Only fails on a duplicate registration, which cannot happen on a fresh instance.
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	return &Validator{validate: v, trans: trans}
}

func (v *Validator) tags(s any, verr *ValidationError) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("", "%s", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.add(fe.Field(), "%s", fe.Translate(v.trans))
	}
}

// Slot validates in and returns the slot it describes, normalised for storage.
// Identity, position and timestamps are left for the caller.
func (v *Validator) Slot(in SlotInput) (model.Slot, error) {
	var verr ValidationError
	v.tags(in, &verr)

	s := model.Slot{
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		TimeFrom:  in.TimeFrom,
		TimeTo:    in.TimeTo,
		Days:      in.Days.Normalize(),
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		IsDefault: in.IsDefault,
		NoLoop:    in.NoLoop,
	}
	if len(s.Days) == 0 {
		s.Days = model.Weekdays{}
	}

	switch in.Type {
	case model.SlotTypeDefault:
		// Only the flag and the content matter for the fallback.
		s.IsDefault = true
		s.TimeFrom, s.TimeTo, s.StartDate, s.EndDate = nil, nil, nil, nil
		s.Days = model.Weekdays{}
		if in.Recurrence != "" {
			verr.add("recurrence", "recurrence applies to event slots only")
		}
	case model.SlotTypeTime:
		v.timeRules(&s, in, &verr)
	case model.SlotTypeEvent:
		v.eventRules(&s, in, &verr)
	default:
		// Already reported by the tag rules.
		return model.Slot{}, verr.err()
	}

	if s.Type != model.SlotTypeDefault && s.Name == "" {
		verr.add("name", "name is a required field")
	}
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		verr.add("end_date", "end_date must not be before start_date")
	}

	if err := verr.err(); err != nil {
		return model.Slot{}, err
	}
	return s, nil
}

func (v *Validator) timeRules(s *model.Slot, in SlotInput, verr *ValidationError) {
	if in.Recurrence != "" {
		verr.add("recurrence", "recurrence applies to event slots only")
	}
	if s.TimeFrom == nil {
		verr.add("time_from", "time_from is a required field")
	}
	if s.TimeTo == nil {
		verr.add("time_to", "time_to is a required field")
	}
	if s.TimeFrom != nil && s.TimeTo != nil && *s.TimeFrom >= *s.TimeTo {
		verr.add("time_to", "time_to must be after time_from")
	}
	if len(s.Days) == 0 {
		verr.add("days_of_week", "days_of_week must contain at least one day")
	}
}

func (v *Validator) eventRules(s *model.Slot, in SlotInput, verr *ValidationError) {
	// Events play once through and run until midnight; they have no end time.
	s.TimeTo = nil
	s.NoLoop = true

	if s.TimeFrom == nil {
		verr.add("time_from", "time_from is a required field")
	} else if *s.TimeFrom >= model.EndOfDay {
		verr.add("time_from", "time_from must be before 24:00")
	}
	if s.IsDefault {
		verr.add("is_default", "an event slot cannot be the default")
	}

	rec := in.Recurrence
	if rec == "" {
		rec = s.Recurrence()
	}
	switch rec {
	case model.RecurrenceOnce:
		if s.StartDate == nil {
			verr.add("start_date", "start_date is required for a one-time event")
		}
		if len(s.Days) > 0 {
			verr.add("days_of_week", "a one-time event cannot repeat on weekdays")
		}
		if s.StartDate != nil && s.EndDate != nil && *s.EndDate != *s.StartDate {
			verr.add("end_date", "a one-time event must end on its start_date")
		}
	case model.RecurrenceDaily:
		switch {
		case len(s.Days) == 0:
			s.Days = model.AllWeekdays()
		case !s.Days.IsFullWeek():
			verr.add("days_of_week", "a daily event must cover every weekday")
		}
	case model.RecurrenceWeekly:
		if len(s.Days) == 0 {
			verr.add("days_of_week", "a weekly event needs at least one weekday")
		}
	}
}

// Item validates a new item.
func (v *Validator) Item(in ItemInput) (model.SlotItem, error) {
	var verr ValidationError
	v.tags(in, &verr)
	checkPlayback(in.DurationOverride, in.Volume, &verr)
	if err := verr.err(); err != nil {
		return model.SlotItem{}, err
	}
	return model.SlotItem{
		AssetID:          strings.TrimSpace(in.AssetID),
		DurationOverride: in.DurationOverride,
		Volume:           in.Volume,
		Mute:             in.Mute,
	}, nil
}

// ItemUpdate applies p to cur and validates the result.
func (v *Validator) ItemUpdate(cur model.SlotItem, p ItemPatch) (model.SlotItem, error) {
	next := cur.Clone()
	next.DurationOverride = p.DurationOverride.Or(cur.DurationOverride)
	next.Volume = p.Volume.Or(cur.Volume)
	if p.Mute != nil {
		next.Mute = *p.Mute
	}

	var verr ValidationError
	checkPlayback(next.DurationOverride, next.Volume, &verr)
	if err := verr.err(); err != nil {
		return model.SlotItem{}, err
	}
	return next, nil
}

func checkPlayback(duration, volume *int, verr *ValidationError) {
	if duration != nil && *duration <= 0 {
		verr.add("duration_override", "duration_override must be greater than 0")
	}
	if volume != nil && (*volume < 0 || *volume > 100) {
		verr.add("volume", "volume must be between 0 and 100")
	}
}

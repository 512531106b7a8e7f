package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
)

const slotColumns = `
	slot_id, name, slot_type, time_from, time_to, days_of_week,
	start_date, end_date, is_default, no_loop, sort_order, version,
	created_at, updated_at`

// @ SLOTS

func listSlots(ctx context.Context, q sqlx.QueryerContext) ([]model.Slot, error) {
	var slots []model.Slot
	query := `SELECT` + slotColumns + ` FROM schedule_slots ORDER BY sort_order, slot_id;`
	if err := sqlx.SelectContext(ctx, q, &slots, query); err != nil {
		log.Error().Err(err).Msg("[db] ListSlots: failed to select slots")
		return nil, err
	}

	items, err := listAllItems(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		slots[i].Items = items[slots[i].ID]
		if slots[i].Items == nil {
			slots[i].Items = []model.SlotItem{}
		}
	}
	return slots, nil
}

func getSlot(ctx context.Context, q sqlx.QueryerContext, slotID string) (model.Slot, error) {
	var s model.Slot
	query := `SELECT` + slotColumns + ` FROM schedule_slots WHERE slot_id = $1;`
	if err := sqlx.GetContext(ctx, q, &s, query, slotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Slot{}, ErrNotFound
		}
		log.Error().Err(err).Str("slot_id", slotID).Msg("[db] GetSlot: failed to get slot")
		return model.Slot{}, err
	}

	items, err := listItems(ctx, q, slotID)
	if err != nil {
		return model.Slot{}, err
	}
	s.Items = items
	return s, nil
}

func slotPositions(ctx context.Context, q sqlx.QueryerContext) ([]ordering.Position, error) {
	var out []ordering.Position
	const query = `SELECT slot_id AS id, sort_order FROM schedule_slots ORDER BY sort_order, slot_id;`
	if err := sqlx.SelectContext(ctx, q, &out, query); err != nil {
		log.Error().Err(err).Msg("[db] SlotPositions: failed to select positions")
		return nil, err
	}
	return out, nil
}

func insertSlot(ctx context.Context, q sqlx.ExtContext, s *model.Slot) error {
	const query = `
	INSERT INTO schedule_slots
	(slot_id, name, slot_type, time_from, time_to, days_of_week,
	 start_date, end_date, is_default, no_loop, sort_order, version,
	 created_at, updated_at)
	VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, now(), now())
	RETURNING version, created_at, updated_at;`

	row := q.QueryRowxContext(ctx, query,
		s.ID, s.Name, s.Type, s.TimeFrom, s.TimeTo, s.Days,
		s.StartDate, s.EndDate, s.IsDefault, s.NoLoop, s.SortOrder,
	)
	if err := row.Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		log.Error().Err(err).Str("slot_id", s.ID).Msg("[db] InsertSlot: failed to insert slot")
		return err
	}
	return nil
}

func updateSlot(ctx context.Context, q sqlx.ExtContext, s *model.Slot) error {
	const query = `
	UPDATE schedule_slots
	SET
	name         = $2,
	slot_type    = $3,
	time_from    = $4,
	time_to      = $5,
	days_of_week = $6,
	start_date   = $7,
	end_date     = $8,
	is_default   = $9,
	no_loop      = $10,
	version      = version + 1,
	updated_at   = now()
	WHERE slot_id = $1
	RETURNING version, updated_at;`

	row := q.QueryRowxContext(ctx, query,
		s.ID, s.Name, s.Type, s.TimeFrom, s.TimeTo, s.Days,
		s.StartDate, s.EndDate, s.IsDefault, s.NoLoop,
	)
	if err := row.Scan(&s.Version, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		log.Error().Err(err).Str("slot_id", s.ID).Msg("[db] UpdateSlot: failed to update slot")
		return err
	}
	return nil
}

// deleteSlot removes the slot; its items go with it through ON DELETE CASCADE.
func deleteSlot(ctx context.Context, q sqlx.ExecerContext, slotID string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM schedule_slots WHERE slot_id = $1;`, slotID)
	if err != nil {
		log.Error().Err(err).Str("slot_id", slotID).Msg("[db] DeleteSlot: failed to delete slot")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func clearDefault(ctx context.Context, q sqlx.QueryerContext, keepSlotID string) ([]string, error) {
	var cleared []string
	const query = `
	UPDATE schedule_slots
	SET is_default = FALSE, version = version + 1, updated_at = now()
	WHERE is_default AND slot_id <> $1
	RETURNING slot_id;`
	if err := sqlx.SelectContext(ctx, q, &cleared, query, keepSlotID); err != nil {
		log.Error().Err(err).Msg("[db] ClearDefault: failed to clear default flag")
		return nil, err
	}
	return cleared, nil
}

// setSlotPositions moves the changed rows clear of the unique index first, then
// writes their final positions.
func setSlotPositions(ctx context.Context, q sqlx.ExecerContext, changed []ordering.Position) error {
	if len(changed) == 0 {
		return nil
	}
	ids := make([]string, len(changed))
	for i, p := range changed {
		ids[i] = p.ID
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE schedule_slots
		   SET sort_order = sort_order + (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM schedule_slots)
		 WHERE slot_id = ANY($1);
	`, pq.Array(ids)); err != nil {
		log.Error().Err(err).Msg("[db] SetSlotPositions: failed to offset positions")
		return err
	}

	for _, p := range changed {
		if _, err := q.ExecContext(ctx, `
			UPDATE schedule_slots
			   SET sort_order = $1
			 WHERE slot_id = $2;
		`, p.SortOrder, p.ID); err != nil {
			log.Error().Err(err).Str("slot_id", p.ID).Int("sort_order", p.SortOrder).
				Msg("[db] SetSlotPositions: failed to set position")
			return err
		}
	}
	return nil
}

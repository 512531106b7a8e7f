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

const itemColumns = `
	item_id, slot_id, asset_id, sort_order, duration_override, volume, mute, created_at`

// @ SLOT ITEMS

func listItems(ctx context.Context, q sqlx.QueryerContext, slotID string) ([]model.SlotItem, error) {
	list := []model.SlotItem{}
	query := `SELECT` + itemColumns + ` FROM schedule_slot_items WHERE slot_id = $1 ORDER BY sort_order;`
	if err := sqlx.SelectContext(ctx, q, &list, query, slotID); err != nil {
		log.Error().Err(err).Str("slot_id", slotID).Msg("[db] ListItems: failed to list slot items")
		return nil, err
	}
	return list, nil
}

// listAllItems groups every item by its slot, each group in sort order.
func listAllItems(ctx context.Context, q sqlx.QueryerContext) (map[string][]model.SlotItem, error) {
	var list []model.SlotItem
	query := `SELECT` + itemColumns + ` FROM schedule_slot_items ORDER BY slot_id, sort_order;`
	if err := sqlx.SelectContext(ctx, q, &list, query); err != nil {
		log.Error().Err(err).Msg("[db] ListItems: failed to list slot items")
		return nil, err
	}
	out := make(map[string][]model.SlotItem)
	for _, it := range list {
		out[it.SlotID] = append(out[it.SlotID], it)
	}
	return out, nil
}

func getItem(ctx context.Context, q sqlx.QueryerContext, slotID, itemID string) (model.SlotItem, error) {
	var it model.SlotItem
	query := `SELECT` + itemColumns + ` FROM schedule_slot_items WHERE slot_id = $1 AND item_id = $2;`
	if err := sqlx.GetContext(ctx, q, &it, query, slotID, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SlotItem{}, ErrNotFound
		}
		log.Error().Err(err).Str("slot_id", slotID).Str("item_id", itemID).
			Msg("[db] GetItem: failed to get slot item")
		return model.SlotItem{}, err
	}
	return it, nil
}

func itemPositions(ctx context.Context, q sqlx.QueryerContext, slotID string) ([]ordering.Position, error) {
	var out []ordering.Position
	const query = `
	SELECT item_id AS id, sort_order
	FROM schedule_slot_items
	WHERE slot_id = $1
	ORDER BY sort_order, item_id;`
	if err := sqlx.SelectContext(ctx, q, &out, query, slotID); err != nil {
		log.Error().Err(err).Str("slot_id", slotID).Msg("[db] ItemPositions: failed to select positions")
		return nil, err
	}
	return out, nil
}

func insertItem(ctx context.Context, q sqlx.QueryerContext, it *model.SlotItem) error {
	const query = `
	INSERT INTO schedule_slot_items
	(item_id, slot_id, asset_id, sort_order, duration_override, volume, mute, created_at)
	VALUES
	($1,      $2,      $3,       $4,         $5,                $6,     $7,   now())
	RETURNING created_at;`

	row := q.QueryRowxContext(ctx, query,
		it.ID, it.SlotID, it.AssetID, it.SortOrder, it.DurationOverride, it.Volume, it.Mute,
	)
	if err := row.Scan(&it.CreatedAt); err != nil {
		log.Error().Err(err).Str("slot_id", it.SlotID).Str("asset_id", it.AssetID).
			Msg("[db] InsertItem: failed to add item to slot")
		return err
	}
	return nil
}

func updateItem(ctx context.Context, q sqlx.ExecerContext, it *model.SlotItem) error {
	res, err := q.ExecContext(ctx, `
		UPDATE schedule_slot_items
		SET
		duration_override = $3,
		volume            = $4,
		mute              = $5
		WHERE slot_id = $1 AND item_id = $2;`,
		it.SlotID, it.ID, it.DurationOverride, it.Volume, it.Mute,
	)
	if err != nil {
		log.Error().Err(err).Str("item_id", it.ID).Msg("[db] UpdateItem: failed to update slot item")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteItem(ctx context.Context, q sqlx.ExecerContext, slotID, itemID string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM schedule_slot_items WHERE slot_id = $1 AND item_id = $2;`, slotID, itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("[db] DeleteItem: failed to remove slot item")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// setItemPositions uses the same offset-then-assign pass as setSlotPositions so the
// (slot_id, sort_order) index never sees a duplicate mid-update.
func setItemPositions(ctx context.Context, q sqlx.ExecerContext, slotID string, changed []ordering.Position) error {
	if len(changed) == 0 {
		return nil
	}
	ids := make([]string, len(changed))
	for i, p := range changed {
		ids[i] = p.ID
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE schedule_slot_items
		   SET sort_order = sort_order + (
		       SELECT COALESCE(MAX(sort_order), 0) + 1 FROM schedule_slot_items WHERE slot_id = $1)
		 WHERE slot_id = $1 AND item_id = ANY($2);
	`, slotID, pq.Array(ids)); err != nil {
		log.Error().Err(err).Str("slot_id", slotID).Msg("[db] SetItemPositions: failed to offset positions")
		return err
	}

	for _, p := range changed {
		if _, err := q.ExecContext(ctx, `
			UPDATE schedule_slot_items
			   SET sort_order = $1
			 WHERE slot_id = $2 AND item_id = $3;
		`, p.SortOrder, slotID, p.ID); err != nil {
			log.Error().Err(err).Str("slot_id", slotID).Str("item_id", p.ID).
				Msg("[db] SetItemPositions: failed to set position")
			return err
		}
	}
	return nil
}

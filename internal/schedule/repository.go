package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
)

const slotsKey = "slots"

type slotCollection struct{ tx db.Tx }

func (c slotCollection) Key() string { return slotsKey }

func (c slotCollection) Members(ctx context.Context) ([]ordering.Position, error) {
	return c.tx.SlotPositions(ctx)
}

func (c slotCollection) SetPositions(ctx context.Context, changed []ordering.Position) error {
	return c.tx.SetSlotPositions(ctx, changed)
}

type itemCollection struct {
	tx     db.Tx
	slotID string
}

func (c itemCollection) Key() string { return "slot:" + c.slotID + ":items" }

func (c itemCollection) Members(ctx context.Context) ([]ordering.Position, error) {
	return c.tx.ItemPositions(ctx, c.slotID)
}

func (c itemCollection) SetPositions(ctx context.Context, changed []ordering.Position) error {
	return c.tx.SetItemPositions(ctx, c.slotID, changed)
}

// Repository is the only writer of slots and items. Every write runs in one store
// transaction, so readers never see a half-applied change such as two defaults.
type Repository struct {
	store     db.Store
	order     *ordering.Manager
	validator *Validator
	newID     func() string
	logger    zerolog.Logger
}

func NewRepository(store db.Store, order *ordering.Manager, logger zerolog.Logger) *Repository {
	if order == nil {
		order = ordering.NewManager()
	}
	return &Repository{
		store:     store,
		order:     order,
		validator: NewValidator(),
		newID:     uuid.NewString,
		logger:    logger.With().Str("component", "schedule_repository").Logger(),
	}
}

// List returns every slot in sort_order with its items.
func (r *Repository) List(ctx context.Context) ([]model.Slot, error) {
	slots, err := r.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (r *Repository) Get(ctx context.Context, slotID string) (model.Slot, error) {
	s, err := r.store.GetSlot(ctx, slotID)
	if errors.Is(err, db.ErrNotFound) {
		return model.Slot{}, slotNotFound(slotID)
	}
	if err != nil {
		return model.Slot{}, fmt.Errorf("get slot %s: %w", slotID, err)
	}
	return s, nil
}

// Create appends a slot to the end of the list. A default slot takes the flag
// from whichever slot held it.
func (r *Repository) Create(ctx context.Context, in SlotInput) (model.Slot, error) {
	slot, err := r.validator.Slot(in)
	if err != nil {
		return model.Slot{}, err
	}
	slot.ID = r.newID()

	var created model.Slot
	err = r.store.InTx(ctx, func(tx db.Tx) error {
		if slot.IsDefault {
			if err := r.clearDefault(ctx, tx, slot.ID); err != nil {
				return err
			}
		}
		_, err := r.order.InsertAtEnd(ctx, slotCollection{tx}, func(ctx context.Context, pos int) error {
			slot.SortOrder = pos
			return tx.InsertSlot(ctx, &slot)
		})
		if err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
		created, err = tx.GetSlot(ctx, slot.ID)
		return err
	})
	if err != nil {
		return model.Slot{}, err
	}

	r.logger.Info().Str("slot_id", created.ID).Str("slot_type", string(created.Type)).
		Bool("is_default", created.IsDefault).Msg("slot created")
	return created, nil
}

// Update applies patch to the stored slot. With expectedVersion set, the write is
// refused with a ConflictError when the slot changed in the meantime.
func (r *Repository) Update(ctx context.Context, slotID string, patch SlotPatch, expectedVersion *int) (model.Slot, error) {
	var updated model.Slot
	err := r.store.InTx(ctx, func(tx db.Tx) error {
		cur, err := tx.GetSlot(ctx, slotID)
		if errors.Is(err, db.ErrNotFound) {
			return slotNotFound(slotID)
		}
		if err != nil {
			return err
		}
		if err := checkVersion(cur, expectedVersion); err != nil {
			return err
		}

		next, err := r.validator.Slot(patch.apply(inputFromSlot(cur)))
		if err != nil {
			return err
		}
		if cur.Dormant() && next.Type == model.SlotTypeDefault && patch.IsDefault == nil {
			next.IsDefault = false
		}
		next.ID = cur.ID
		next.SortOrder = cur.SortOrder
		next.Version = cur.Version

		if next.IsDefault && !cur.IsDefault {
			if err := r.clearDefault(ctx, tx, cur.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateSlot(ctx, &next); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return &ConflictError{Reason: "slot was deleted concurrently"}
			}
			return fmt.Errorf("update slot: %w", err)
		}
		if _, err := r.order.Normalize(ctx, slotCollection{tx}); err != nil {
			return err
		}
		updated, err = tx.GetSlot(ctx, slotID)
		return err
	})
	if err != nil {
		return model.Slot{}, err
	}

	r.logger.Info().Str("slot_id", slotID).Int("version", updated.Version).Msg("slot updated")
	return updated, nil
}

// Delete removes the slot with its items and closes the gap in the list. Deleting
// the default leaves the schedule without a fallback.
func (r *Repository) Delete(ctx context.Context, slotID string, expectedVersion *int) error {
	err := r.store.InTx(ctx, func(tx db.Tx) error {
		cur, err := tx.GetSlot(ctx, slotID)
		if errors.Is(err, db.ErrNotFound) {
			return slotNotFound(slotID)
		}
		if err != nil {
			return err
		}
		if err := checkVersion(cur, expectedVersion); err != nil {
			return err
		}

		err = r.order.Remove(ctx, slotCollection{tx}, slotID, func(ctx context.Context) error {
			return tx.DeleteSlot(ctx, slotID)
		})
		if errors.Is(err, ordering.ErrNotMember) || errors.Is(err, db.ErrNotFound) {
			return &ConflictError{Reason: "slot was deleted concurrently"}
		}
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info().Str("slot_id", slotID).Msg("slot deleted")
	return nil
}

// AddItem appends an item to the slot. The asset must already be known to be valid.
func (r *Repository) AddItem(ctx context.Context, slotID string, in ItemInput) (model.SlotItem, error) {
	item, err := r.validator.Item(in)
	if err != nil {
		return model.SlotItem{}, err
	}
	item.ID = r.newID()
	item.SlotID = slotID

	var created model.SlotItem
	err = r.store.InTx(ctx, func(tx db.Tx) error {
		slot, err := tx.GetSlot(ctx, slotID)
		if errors.Is(err, db.ErrNotFound) {
			return slotNotFound(slotID)
		}
		if err != nil {
			return err
		}
		for _, it := range slot.Items {
			if it.AssetID == item.AssetID {
				return &DuplicateItemError{SlotID: slotID, AssetID: item.AssetID}
			}
		}

		_, err = r.order.InsertAtEnd(ctx, itemCollection{tx, slotID}, func(ctx context.Context, pos int) error {
			item.SortOrder = pos
			return tx.InsertItem(ctx, &item)
		})
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		created, err = tx.GetItem(ctx, slotID, item.ID)
		return err
	})
	if err != nil {
		return model.SlotItem{}, err
	}

	r.logger.Info().Str("slot_id", slotID).Str("item_id", created.ID).Str("asset_id", created.AssetID).
		Int("sort_order", created.SortOrder).Msg("item added")
	return created, nil
}

func (r *Repository) RemoveItem(ctx context.Context, slotID, itemID string) error {
	err := r.store.InTx(ctx, func(tx db.Tx) error {
		if _, err := tx.GetSlot(ctx, slotID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return slotNotFound(slotID)
			}
			return err
		}
		err := r.order.Remove(ctx, itemCollection{tx, slotID}, itemID, func(ctx context.Context) error {
			return tx.DeleteItem(ctx, slotID, itemID)
		})
		if errors.Is(err, ordering.ErrNotMember) || errors.Is(err, db.ErrNotFound) {
			return itemNotFound(itemID)
		}
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info().Str("slot_id", slotID).Str("item_id", itemID).Msg("item removed")
	return nil
}

// ReorderItems puts the slot's items in the order of itemIDs, which must name each
// current item exactly once.
func (r *Repository) ReorderItems(ctx context.Context, slotID string, itemIDs []string) ([]model.SlotItem, error) {
	var items []model.SlotItem
	err := r.store.InTx(ctx, func(tx db.Tx) error {
		if _, err := tx.GetSlot(ctx, slotID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return slotNotFound(slotID)
			}
			return err
		}
		if _, err := r.order.Reorder(ctx, itemCollection{tx, slotID}, itemIDs); err != nil {
			return err
		}
		slot, err := tx.GetSlot(ctx, slotID)
		if err != nil {
			return err
		}
		items = slot.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info().Str("slot_id", slotID).Int("items", len(items)).Msg("items reordered")
	return items, nil
}

func (r *Repository) UpdateItem(ctx context.Context, slotID, itemID string, patch ItemPatch) (model.SlotItem, error) {
	var updated model.SlotItem
	err := r.store.InTx(ctx, func(tx db.Tx) error {
		cur, err := tx.GetItem(ctx, slotID, itemID)
		if errors.Is(err, db.ErrNotFound) {
			if _, serr := tx.GetSlot(ctx, slotID); errors.Is(serr, db.ErrNotFound) {
				return slotNotFound(slotID)
			}
			return itemNotFound(itemID)
		}
		if err != nil {
			return err
		}
		next, err := r.validator.ItemUpdate(cur, patch)
		if err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, &next); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return itemNotFound(itemID)
			}
			return fmt.Errorf("update item: %w", err)
		}
		updated, err = tx.GetItem(ctx, slotID, itemID)
		return err
	})
	if err != nil {
		return model.SlotItem{}, err
	}

	r.logger.Info().Str("slot_id", slotID).Str("item_id", itemID).Msg("item updated")
	return updated, nil
}

func (r *Repository) clearDefault(ctx context.Context, tx db.Tx, keep string) error {
	cleared, err := tx.ClearDefault(ctx, keep)
	if err != nil {
		return fmt.Errorf("clear default: %w", err)
	}
	if len(cleared) > 0 {
		r.logger.Info().Strs("slot_ids", cleared).Str("new_default", keep).Msg("default flag moved")
	}
	return nil
}

func checkVersion(cur model.Slot, expected *int) error {
	if expected != nil && cur.Version != *expected {
		return &ConflictError{Reason: fmt.Sprintf("slot %s is at version %d, not %d", cur.ID, cur.Version, *expected)}
	}
	return nil
}

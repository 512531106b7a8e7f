package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
)

// scheduleLockKey serialises schedule writers across service instances.
const scheduleLockKey = 0x5C4ED01E

type PostgresStore struct {
	db *sqlx.DB
}

// compile-time check that PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(conn *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("[db] InTx: failed to begin transaction")
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("[db] InTx: rollback failed")
			}
			return
		}
		if err = tx.Commit(); err != nil {
			log.Error().Err(err).Msg("[db] InTx: commit failed")
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1);`, scheduleLockKey); err != nil {
		log.Error().Err(err).Msg("[db] InTx: failed to take schedule lock")
		return fmt.Errorf("lock schedule: %w", err)
	}

	return fn(&pgTx{tx: tx})
}

// snapshot runs fn in a read-only REPEATABLE READ transaction, so every statement
// fn issues sees the same committed state.
func (s *PostgresStore) snapshot(ctx context.Context, fn func(q *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		log.Error().Err(err).Msg("[db] snapshot: failed to begin read transaction")
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(tx)
}

func (s *PostgresStore) ListSlots(ctx context.Context) (slots []model.Slot, err error) {
	err = s.snapshot(ctx, func(q *sqlx.Tx) error {
		slots, err = listSlots(ctx, q)
		return err
	})
	return slots, err
}

func (s *PostgresStore) GetSlot(ctx context.Context, slotID string) (slot model.Slot, err error) {
	err = s.snapshot(ctx, func(q *sqlx.Tx) error {
		slot, err = getSlot(ctx, q, slotID)
		return err
	})
	return slot, err
}

func (s *PostgresStore) GetItem(ctx context.Context, slotID, itemID string) (model.SlotItem, error) {
	return getItem(ctx, s.db, slotID, itemID)
}

func (s *PostgresStore) SlotPositions(ctx context.Context) ([]ordering.Position, error) {
	return slotPositions(ctx, s.db)
}

func (s *PostgresStore) ItemPositions(ctx context.Context, slotID string) ([]ordering.Position, error) {
	return itemPositions(ctx, s.db, slotID)
}

type pgTx struct {
	tx *sqlx.Tx
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) ListSlots(ctx context.Context) ([]model.Slot, error) {
	return listSlots(ctx, t.tx)
}

func (t *pgTx) GetSlot(ctx context.Context, slotID string) (model.Slot, error) {
	return getSlot(ctx, t.tx, slotID)
}

func (t *pgTx) GetItem(ctx context.Context, slotID, itemID string) (model.SlotItem, error) {
	return getItem(ctx, t.tx, slotID, itemID)
}

func (t *pgTx) SlotPositions(ctx context.Context) ([]ordering.Position, error) {
	return slotPositions(ctx, t.tx)
}

func (t *pgTx) ItemPositions(ctx context.Context, slotID string) ([]ordering.Position, error) {
	return itemPositions(ctx, t.tx, slotID)
}

func (t *pgTx) InsertSlot(ctx context.Context, s *model.Slot) error {
	return insertSlot(ctx, t.tx, s)
}

func (t *pgTx) UpdateSlot(ctx context.Context, s *model.Slot) error {
	return updateSlot(ctx, t.tx, s)
}

func (t *pgTx) DeleteSlot(ctx context.Context, slotID string) error {
	return deleteSlot(ctx, t.tx, slotID)
}

func (t *pgTx) ClearDefault(ctx context.Context, keepSlotID string) ([]string, error) {
	return clearDefault(ctx, t.tx, keepSlotID)
}

func (t *pgTx) SetSlotPositions(ctx context.Context, changed []ordering.Position) error {
	return setSlotPositions(ctx, t.tx, changed)
}

func (t *pgTx) InsertItem(ctx context.Context, it *model.SlotItem) error {
	return insertItem(ctx, t.tx, it)
}

func (t *pgTx) UpdateItem(ctx context.Context, it *model.SlotItem) error {
	return updateItem(ctx, t.tx, it)
}

func (t *pgTx) DeleteItem(ctx context.Context, slotID, itemID string) error {
	return deleteItem(ctx, t.tx, slotID, itemID)
}

func (t *pgTx) SetItemPositions(ctx context.Context, slotID string, changed []ordering.Position) error {
	return setItemPositions(ctx, t.tx, slotID, changed)
}

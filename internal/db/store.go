// Package db persists slots and slot items and reads assets from the asset store.
package db

import (
	"context"
	"errors"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
)

var ErrNotFound = errors.New("db: record not found")

// Reader is the read side shared by stores and transactions. Slots come back in
// sort_order with their items loaded in sort_order.
type Reader interface {
	ListSlots(ctx context.Context) ([]model.Slot, error)
	GetSlot(ctx context.Context, slotID string) (model.Slot, error)
	GetItem(ctx context.Context, slotID, itemID string) (model.SlotItem, error)
	SlotPositions(ctx context.Context) ([]ordering.Position, error)
	ItemPositions(ctx context.Context, slotID string) ([]ordering.Position, error)
}

// Tx is a unit of work. Nothing it writes is visible to readers until InTx returns nil.
type Tx interface {
	Reader

	// InsertSlot fills in CreatedAt, UpdatedAt and Version.
	InsertSlot(ctx context.Context, s *model.Slot) error
	// UpdateSlot writes every mutable column, bumps Version and refreshes UpdatedAt.
	UpdateSlot(ctx context.Context, s *model.Slot) error
	DeleteSlot(ctx context.Context, slotID string) error
	// ClearDefault drops the default flag from every slot except keepSlotID and
	// returns the ids it changed.
	ClearDefault(ctx context.Context, keepSlotID string) ([]string, error)
	SetSlotPositions(ctx context.Context, changed []ordering.Position) error

	InsertItem(ctx context.Context, it *model.SlotItem) error
	UpdateItem(ctx context.Context, it *model.SlotItem) error
	DeleteItem(ctx context.Context, slotID, itemID string) error
	SetItemPositions(ctx context.Context, slotID string, changed []ordering.Position) error
}

type Store interface {
	Reader
	// InTx runs fn in a serialised transaction. Its writes commit together when fn
	// returns nil and are discarded otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// AssetCatalog is the read-only view of the external asset store.
type AssetCatalog interface {
	GetAsset(ctx context.Context, assetID string) (model.Asset, error)
	// GetAssets returns the known assets among ids. Unknown ids are simply absent.
	GetAssets(ctx context.Context, ids []string) (map[string]model.Asset, error)
}

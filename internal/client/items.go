package client

import (
	"context"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/reconcile"
)

// ItemList is a local copy of one slot's items. Edits show up immediately and are
// then replaced by the server's answer, or rolled back when the request fails.
type ItemList struct {
	c      *Client
	slotID string
	state  *reconcile.Optimistic[[]packets.ItemResponse]
}

func itemKey(it packets.ItemResponse) string { return it.ID }

func setItemPos(it *packets.ItemResponse, pos int) { it.SortOrder = pos }

// Items loads the items of slotID.
func (c *Client) Items(ctx context.Context, slotID string) (*ItemList, error) {
	items, err := c.ListItems(ctx, slotID)
	if err != nil {
		return nil, err
	}
	return &ItemList{c: c, slotID: slotID, state: reconcile.New(items)}, nil
}

func (l *ItemList) Items() []packets.ItemResponse { return l.state.Get() }

// OnChange registers fn for every local change. The returned func unregisters it.
func (l *ItemList) OnChange(fn func([]packets.ItemResponse)) func() {
	return l.state.OnChange(fn)
}

// Refresh replaces the local copy with the server's.
func (l *ItemList) Refresh(ctx context.Context) error {
	items, err := l.c.ListItems(ctx, l.slotID)
	if err != nil {
		return err
	}
	l.state.Set(items)
	return nil
}

func (l *ItemList) Reorder(ctx context.Context, itemIDs []string) error {
	_, err := l.state.Apply(ctx,
		func(cur []packets.ItemResponse) []packets.ItemResponse {
			return reconcile.Reorder(cur, itemIDs, itemKey, setItemPos)
		},
		func(ctx context.Context) ([]packets.ItemResponse, error) {
			return l.c.ReorderItems(ctx, l.slotID, itemIDs)
		})
	return err
}

func (l *ItemList) Remove(ctx context.Context, itemID string) error {
	_, err := l.state.Apply(ctx,
		func(cur []packets.ItemResponse) []packets.ItemResponse {
			return reconcile.Without(cur, itemID, itemKey, setItemPos)
		},
		func(ctx context.Context) ([]packets.ItemResponse, error) {
			if err := l.c.RemoveItem(ctx, l.slotID, itemID); err != nil {
				return nil, err
			}
			return l.c.ListItems(ctx, l.slotID)
		})
	return err
}

// Add appends assetID. There is no local guess since the item id comes from the
// server.
func (l *ItemList) Add(ctx context.Context, assetID string, durationOverride *int) error {
	_, err := l.state.Apply(ctx, nil, func(ctx context.Context) ([]packets.ItemResponse, error) {
		if _, err := l.c.AddItem(ctx, l.slotID, packets.AddItemRequest{AssetID: assetID, DurationOverride: durationOverride}); err != nil {
			return nil, err
		}
		return l.c.ListItems(ctx, l.slotID)
	})
	return err
}

// SetDuration sets or, with nil, clears the item's duration override.
func (l *ItemList) SetDuration(ctx context.Context, itemID string, seconds *int) error {
	_, err := l.state.Apply(ctx,
		func(cur []packets.ItemResponse) []packets.ItemResponse {
			for _, it := range cur {
				if it.ID != itemID {
					continue
				}
				it.DurationOverride = seconds
				if seconds != nil {
					it.EffectiveDuration = seconds
				} else {
					it.EffectiveDuration = it.AssetDuration
				}
				return reconcile.Replace(cur, it, itemKey)
			}
			return cur
		},
		func(ctx context.Context) ([]packets.ItemResponse, error) {
			patch := packets.UpdateItemRequest{DurationOverride: model.Null[int]()}
			if seconds != nil {
				patch.DurationOverride = model.Some(*seconds)
			}
			updated, err := l.c.UpdateItem(ctx, l.slotID, itemID, patch)
			if err != nil {
				return nil, err
			}
			return reconcile.Replace(l.state.Get(), updated, itemKey), nil
		})
	return err
}

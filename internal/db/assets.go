package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// PostgresAssets reads the asset store's table. It never writes to it.
type PostgresAssets struct {
	db *sqlx.DB
}

var _ AssetCatalog = (*PostgresAssets)(nil)

func NewPostgresAssets(conn *sqlx.DB) *PostgresAssets {
	return &PostgresAssets{db: conn}
}

const assetColumns = `asset_id, name, uri, mimetype, duration, is_enabled`

func (a *PostgresAssets) GetAsset(ctx context.Context, assetID string) (model.Asset, error) {
	var asset model.Asset
	query := `SELECT ` + assetColumns + ` FROM assets WHERE asset_id = $1;`
	if err := a.db.GetContext(ctx, &asset, query, assetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Asset{}, ErrNotFound
		}
		log.Error().Err(err).Str("asset_id", assetID).Msg("[db] GetAsset: failed to get asset")
		return model.Asset{}, err
	}
	return asset, nil
}

func (a *PostgresAssets) GetAssets(ctx context.Context, ids []string) (map[string]model.Asset, error) {
	out := make(map[string]model.Asset, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []model.Asset
	query := `SELECT ` + assetColumns + ` FROM assets WHERE asset_id = ANY($1);`
	if err := a.db.SelectContext(ctx, &list, query, pq.Array(ids)); err != nil {
		log.Error().Err(err).Int("count", len(ids)).Msg("[db] GetAssets: failed to select assets")
		return nil, err
	}
	for _, asset := range list {
		out[asset.ID] = asset
	}
	return out, nil
}

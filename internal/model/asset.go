package model

// Asset is a read-only view of a record owned by the external asset store.
type Asset struct {
	ID        string `db:"asset_id"   json:"asset_id"`
	Name      string `db:"name"       json:"name"`
	URI       string `db:"uri"        json:"uri"`
	Mimetype  string `db:"mimetype"   json:"mimetype"`
	Duration  int    `db:"duration"   json:"duration"`
	IsEnabled bool   `db:"is_enabled" json:"is_enabled"`
}

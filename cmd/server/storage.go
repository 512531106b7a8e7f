package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/cache"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/notify"
)

// backend is the selected slot store and asset catalog.
type backend struct {
	Store  db.Store
	Assets db.AssetCatalog
	conn   *sqlx.DB
}

func (b *backend) Close() {
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// openBackend uses PostgreSQL when DATABASE_URL is set and the in-memory store
// otherwise.
func openBackend(cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	if cfg.DatabaseURL == "" {
		assets, err := loadAssets(cfg.AssetsFile)
		if err != nil {
			return nil, err
		}
		logger.Warn().Int("assets", len(assets)).Msg("DATABASE_URL not set, using in-memory schedule store")
		return &backend{Store: db.NewMemoryStore(), Assets: db.NewMemoryAssets(assets...)}, nil
	}

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db init: %w", err)
	}
	if err := db.RunMigrations(conn, cfg.MigrationsPath); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return &backend{Store: db.NewPostgresStore(conn), Assets: db.NewPostgresAssets(conn), conn: conn}, nil
}

func loadAssets(path string) ([]model.Asset, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ASSETS_FILE: %w", err)
	}
	var assets []model.Asset
	if err := json.Unmarshal(raw, &assets); err != nil {
		return nil, fmt.Errorf("parse ASSETS_FILE %q: %w", path, err)
	}
	return assets, nil
}

// openStatusCache shares the status through Redis when REDIS_ADDRESS is set. An
// unreachable Redis degrades to misses, so the service still starts.
func openStatusCache(cfg *config.Config, logger zerolog.Logger) (cache.StatusCache, func()) {
	if cfg.Redis.Address == "" {
		return cache.NewMemory(), func() {}
	}
	rc := cache.NewRedis(cache.RedisConfig{
		Address:   cfg.Redis.Address,
		Username:  cfg.Redis.Username,
		Password:  cfg.Redis.Password,
		StatusTTL: cfg.StatusCacheTTL,
	}, logger)
	return rc, func() { _ = rc.Close() }
}

// openNotifier always includes the websocket hub, plus MQTT when a broker is
// configured and reachable.
func openNotifier(cfg *config.Config, hub *tv.Hub, logger zerolog.Logger) notify.Publisher {
	fan := notify.Fanout{hub}
	if cfg.MQTT.BrokerURL == "" {
		logger.Info().Msg("MQTT_BROKER_URL not set, players only get websocket pushes")
		return fan
	}
	mq, err := notify.NewMQTT(notify.MQTTConfig{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientID,
		Topic:     cfg.MQTT.Topic,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("MQTT unavailable, continuing without it")
		return fan
	}
	return append(fan, mq)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const (
	KeyStatus = "medusa:schedule:status"

	DefaultStatusTTL = time.Minute
)

type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int

	StatusTTL time.Duration
}

// Redis shares the resolved status between service instances. When Redis cannot be
// reached it degrades to a permanent miss instead of failing requests.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
	ttl    time.Duration

	mu       sync.RWMutex
	disabled bool
}

var _ StatusCache = (*Redis)(nil)

func NewRedis(cfg RedisConfig, logger zerolog.Logger) *Redis {
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = DefaultStatusTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	r := &Redis{
		client: client,
		logger: logger.With().Str("component", "status_cache").Logger(),
		ttl:    cfg.StatusTTL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		r.logger.Warn().Err(err).Str("addr", cfg.Address).Msg("redis unavailable, status cache disabled")
		r.disabled = true
		return r
	}

	r.logger.Info().Str("addr", cfg.Address).Msg("redis status cache initialized")
	return r
}

func (r *Redis) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.disabled
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context) (model.ScheduleStatus, bool) {
	if !r.Available() {
		return model.ScheduleStatus{}, false
	}
	raw, err := r.client.Get(ctx, KeyStatus).Bytes()
	if err != nil {
		r.handleError(err, "get")
		return model.ScheduleStatus{}, false
	}
	var status model.ScheduleStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		r.logger.Warn().Err(err).Msg("discarding undecodable cached status")
		return model.ScheduleStatus{}, false
	}
	return status, true
}

func (r *Redis) Set(ctx context.Context, status model.ScheduleStatus) error {
	if !r.Available() {
		return nil
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, KeyStatus, raw, r.ttl).Err(); err != nil {
		r.handleError(err, "set")
		return err
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	if !r.Available() {
		return nil
	}
	if err := r.client.Del(ctx, KeyStatus).Err(); err != nil {
		r.handleError(err, "delete")
		return err
	}
	r.logger.Debug().Str("key", KeyStatus).Msg("invalidated cached status")
	return nil
}

// handleError trips the breaker on connection-level failures; a plain miss is not an error.
func (r *Redis) handleError(err error, op string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	r.logger.Warn().Err(err).Str("op", op).Msg("redis status cache error")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	r.mu.Lock()
	r.disabled = true
	r.mu.Unlock()
	r.logger.Warn().Msg("status cache disabled after redis error")
}

package repository

import (
	"context"
	"sync/atomic"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/logging"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long the failover waits before probing the primary again.
const recoveryInterval = time.Minute

// FailoverStateRepository serves from the primary (redis) until it errors,
// then falls back to memory and probes the primary periodically.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logging.Component(logger, "state-repo"),
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverStateRepository) shouldProbe() bool {
	return r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverStateRepository) CheckQuota(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		allowed, retryAfter, err := r.primary.CheckQuota(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, retryAfter, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckQuota(ctx, key, limit, window)
}

func (r *FailoverStateRepository) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		first, err := r.primary.MarkProcessed(ctx, key, ttl)
		if err == nil {
			r.isDown.Store(false)
			return first, nil
		}
		r.markDown(err)
	}
	return r.fallback.MarkProcessed(ctx, key, ttl)
}

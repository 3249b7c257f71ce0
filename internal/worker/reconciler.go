package worker

import (
	"context"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
)

// OutcomeApplier applies a provider-reported outcome to a payment and its
// booking. Satisfied by the payments adapter.
type OutcomeApplier interface {
	ApplyOutcome(ctx context.Context, outcome *domain.SessionOutcome) error
}

// queryBackoffCap bounds the delay between provider probes so one flapping
// session cannot stretch a pass past the reconcile interval.
const queryBackoffCap = 30 * time.Second

// Reconciler closes the gap left by lost callbacks: payments stuck in
// pending past a deadline are queried against the provider directly, so no
// payment row stays pending indefinitely without a resolution path.
type Reconciler struct {
	store        domain.Store
	provider     domain.ProviderClient
	applier      OutcomeApplier
	queryRetries int
	queryBackoff time.Duration
	staleAfter   time.Duration
	batchSize    int
	logger       zerolog.Logger
}

func NewReconciler(store domain.Store, provider domain.ProviderClient, applier OutcomeApplier, staleAfterMinutes, batchSize int, logger *zerolog.Logger) *Reconciler {
	if staleAfterMinutes <= 0 {
		staleAfterMinutes = models.DefaultReconcileAfterMinutes
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	log := logging.Component(logger, "reconciler")
	return &Reconciler{
		store:        store,
		provider:     provider,
		applier:      applier,
		queryRetries: 3,
		queryBackoff: 2 * time.Second,
		staleAfter:   time.Duration(staleAfterMinutes) * time.Minute,
		batchSize:    batchSize,
		logger:       log,
	}
}

// ReconcileOnce queries the provider for every stale pending payment and
// applies the outcome. Per-payment failures are logged and skipped; the
// payment stays pending and is retried on the next pass.
func (r *Reconciler) ReconcileOnce(ctx context.Context, now time.Time) (int, error) {
	stale, err := r.store.ListStalePendingPayments(ctx, now.Add(-r.staleAfter), r.batchSize)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, payment := range stale {
		outcome, err := r.querySessionWithRetry(ctx, payment.SessionID)
		if err != nil {
			r.logger.Warn().Err(err).
				Int64("payment_id", payment.ID).
				Str("session_id", payment.SessionID).
				Msg("provider query failed, leaving payment pending")
			continue
		}
		if outcome.Status == models.ProviderPending {
			continue
		}
		if err := r.applier.ApplyOutcome(ctx, outcome); err != nil {
			r.logger.Error().Err(err).Int64("payment_id", payment.ID).Msg("apply reconciled outcome")
			continue
		}
		applied++
		r.logger.Info().
			Int64("payment_id", payment.ID).
			Str("status", outcome.Status).
			Msg("payment reconciled")
	}
	return applied, nil
}

func (r *Reconciler) querySessionWithRetry(ctx context.Context, sessionID string) (*domain.SessionOutcome, error) {
	var lastErr error
	for attempt := 1; attempt <= r.queryRetries; attempt++ {
		outcome, err := r.provider.QuerySession(ctx, sessionID)
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.queryDelay(attempt)):
		}
	}
	return nil, lastErr
}

// queryDelay doubles the base backoff per failed probe, clamped at the cap.
func (r *Reconciler) queryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := r.queryBackoff
	if base <= 0 {
		base = time.Second
	}
	d := base << (attempt - 1)
	if d <= 0 || d > queryBackoffCap {
		d = queryBackoffCap
	}
	return d
}

// Run reconciles on a fixed interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx, time.Now()); err != nil {
				r.logger.Error().Err(err).Msg("reconcile pass failed")
			}
		}
	}
}

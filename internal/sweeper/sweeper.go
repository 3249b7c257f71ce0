package sweeper

import (
	"context"
	"errors"
	"time"

	"stayflow/internal/booking"
	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/metrics"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
)

// Sweeper cancels bookings that rotted in (pending, unpaid) past the TTL.
// Each booking's expiration is an independent, idempotent operation: a crash
// mid-sweep leaves the remaining rows pending for the next run.
type Sweeper struct {
	store    domain.Store
	bookings *booking.Service
	ttl      time.Duration
	logger   zerolog.Logger
}

func New(store domain.Store, bookings *booking.Service, ttlMinutes int, logger *zerolog.Logger) *Sweeper {
	if ttlMinutes <= 0 {
		ttlMinutes = models.DefaultBookingTTLMinutes
	}
	return &Sweeper{
		store:    store,
		bookings: bookings,
		ttl:      time.Duration(ttlMinutes) * time.Minute,
		logger:   logging.Component(logger, "sweeper"),
	}
}

// Sweep expires every eligible booking and returns the ids it cancelled.
// Eligibility is createdAt strictly before now−TTL with status pending and
// payment status unpaid; the boundary itself is not yet eligible. The
// conditional write re-checks eligibility, so a booking paid between
// selection and write is skipped rather than cancelled.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) ([]int64, error) {
	cutoff := now.Add(-s.ttl)

	candidates, err := s.store.ListExpiryCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	expired := make([]int64, 0, len(candidates))
	for _, b := range candidates {
		_, err := s.bookings.Transition(ctx, b.ID, booking.Expire{}, domain.System())
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrConcurrentModification) {
			// Lost the race to a live payment or another sweep; leave it alone.
			s.logger.Debug().Int64("booking_id", b.ID).Err(err).Msg("skipping booking during sweep")
			continue
		}
		if err != nil {
			// Remaining candidates stay pending and will be re-evaluated next run.
			return expired, err
		}
		expired = append(expired, b.ID)
		s.logger.Info().Int64("booking_id", b.ID).Time("created_at", b.CreatedAt).Msg("booking expired")
	}

	metrics.AddExpired(len(expired))
	return expired, nil
}

// Run invokes Sweep on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
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
			if _, err := s.Sweep(ctx, time.Now()); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stayflow/internal/audit"
	"stayflow/internal/domain"
	"stayflow/internal/events"
	"stayflow/internal/logging"
	"stayflow/internal/metrics"
	"stayflow/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// transitionRetries bounds the optimistic-conflict retry loop per call.
const transitionRetries = 3

// shortRefRetries bounds regeneration attempts when a generated reference
// collides with an existing row. 32 bits of reference can collide.
const shortRefRetries = 3

// Service is the single authority for status × paymentStatus transitions.
// All mutations to one booking are serialized through versioned conditional
// writes; a conflicting writer loses and the transition is re-evaluated
// against fresh state.
type Service struct {
	store    domain.Store
	recorder domain.AuditRecorder
	eventBus domain.EventPublisher
	logger   zerolog.Logger
}

func NewService(store domain.Store, recorder domain.AuditRecorder, eventBus domain.EventPublisher, logger *zerolog.Logger) *Service {
	return &Service{
		store:    store,
		recorder: recorder,
		eventBus: eventBus,
		logger:   logging.Component(logger, "booking"),
	}
}

// Create persists a new booking as (pending, unpaid) with at least one item.
func (s *Service) Create(ctx context.Context, booking *models.Booking, items []models.BookingItem, actor domain.ActorContext) error {
	if err := validateNew(booking, items); err != nil {
		return err
	}

	booking.Status = models.StatusPending
	booking.PaymentStatus = models.PaymentUnpaid
	booking.AmountPaid = 0
	booking.AmountDue = booking.TotalAmount
	generated := booking.ShortRef == ""
	for attempt := 0; ; attempt++ {
		if generated {
			booking.ShortRef = NewShortRef()
		}
		err := s.store.CreateBookingWithItems(ctx, booking, items)
		if err == nil {
			break
		}
		if generated && errors.Is(err, domain.ErrDuplicateRef) && attempt+1 < shortRefRetries {
			s.logger.Warn().Str("short_ref", booking.ShortRef).Msg("short ref collision, regenerating")
			continue
		}
		return err
	}

	if err := s.recorder.Record(ctx, models.ActionCreate, models.EntityBooking,
		fmt.Sprintf("%d", booking.ID), actor.ActorID(), nil, audit.Snapshot(booking)); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("audit create entry")
	}

	s.publish(events.EventBookingCreated, booking, actorLabel(actor))
	return nil
}

// Transition applies one event to a booking. The guard is validated against
// current state and the write is conditional on the version read; on
// conflict the whole evaluation repeats with fresh state. Either the full
// state change commits or nothing does.
func (s *Service) Transition(ctx context.Context, bookingID int64, ev Event, actor domain.ActorContext) (*models.Booking, error) {
	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		booking, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		fn, err := resolve(booking, ev)
		if err != nil {
			return nil, err
		}

		settledTotal := booking.AmountPaid
		if ev.Kind() == KindSettle || ev.Kind() == KindFail {
			settledTotal, err = s.store.SumSettledPayments(ctx, bookingID)
			if err != nil {
				return nil, err
			}
		}

		next, err := fn(booking, ev, settledTotal)
		if err != nil {
			return nil, err
		}

		before := audit.Snapshot(booking)
		updated := *booking
		updated.Status = next.Status
		updated.PaymentStatus = next.PaymentStatus
		updated.AmountPaid = next.AmountPaid
		updated.AmountDue = next.AmountDue

		oldVals, newVals := audit.Diff(before, audit.Snapshot(&updated))
		if len(newVals) == 0 {
			// No-op transition: nothing to persist, no audit entry.
			return booking, nil
		}

		err = s.store.UpdateBookingStateWithVersion(ctx, booking.ID, booking.Version,
			next.Status, next.PaymentStatus, next.AmountPaid, next.AmountDue)
		if errors.Is(err, domain.ErrConcurrentModification) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		updated.Version = booking.Version + 1

		if err := s.recorder.Record(ctx, models.ActionUpdate, models.EntityBooking,
			fmt.Sprintf("%d", booking.ID), actor.ActorID(), oldVals, newVals); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("audit transition entry")
		}

		metrics.IncTransition(string(ev.Kind()))
		s.publish(eventTypeFor(ev, &updated), &updated, actorLabel(actor))
		return &updated, nil
	}
	return nil, lastErr
}

// Get returns a booking with its items.
func (s *Service) Get(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetBookingItems(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.Items = items
	return booking, nil
}

// GetByShortRef resolves a human-facing reference.
func (s *Service) GetByShortRef(ctx context.Context, shortRef string) (*models.Booking, error) {
	return s.store.GetBookingByShortRef(ctx, shortRef)
}

func (s *Service) publish(eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		ShortRef:      booking.ShortRef,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
		AmountPaid:    booking.AmountPaid,
		AmountDue:     booking.AmountDue,
		ChangedBy:     changedBy,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func eventTypeFor(ev Event, b *models.Booking) string {
	switch ev.Kind() {
	case KindSettle:
		if b.Status == models.StatusConfirmed && b.PaymentStatus == models.PaymentPaid {
			return events.EventBookingConfirmed
		}
		return events.EventPaymentSettled
	case KindFail:
		return events.EventPaymentFailed
	case KindCancel:
		return events.EventBookingCancelled
	case KindExpire:
		return events.EventBookingExpired
	case KindConfirm:
		return events.EventBookingConfirmed
	case KindComplete:
		return events.EventBookingCompleted
	}
	return string(ev.Kind())
}

func actorLabel(actor domain.ActorContext) string {
	switch {
	case actor.IsStaff:
		return "staff"
	case actor.Authenticated():
		return "guest"
	case actor.Token != "":
		return "guest_token"
	default:
		return "system"
	}
}

func validateNew(booking *models.Booking, items []models.BookingItem) error {
	if booking == nil {
		return fmt.Errorf("booking is required: %w", domain.ErrValidation)
	}
	if len(items) == 0 {
		return fmt.Errorf("booking requires at least one item: %w", domain.ErrValidation)
	}
	if booking.TotalAmount < 0 || booking.TaxAmount < 0 || booking.ServiceCharge < 0 {
		return fmt.Errorf("monetary fields must be non-negative: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(booking.GuestName) == "" || strings.TrimSpace(booking.GuestEmail) == "" {
		return fmt.Errorf("guest name and email are required: %w", domain.ErrValidation)
	}
	for _, item := range items {
		if !item.CheckOut.After(item.CheckIn) {
			return fmt.Errorf("item check_out must be after check_in: %w", domain.ErrValidation)
		}
		if item.PriceSnapshot < 0 {
			return fmt.Errorf("item price snapshot must be non-negative: %w", domain.ErrValidation)
		}
	}
	return nil
}

// NewShortRef builds a stable human-facing reference like "SF-3F0A9C21".
func NewShortRef() string {
	id := uuid.New()
	return "SF-" + strings.ToUpper(id.String()[:8])
}

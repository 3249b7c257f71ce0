package booking

import (
	"fmt"

	"stayflow/internal/domain"
	"stayflow/internal/models"
)

// state is the target computed by a transition before it is written.
type state struct {
	Status        string
	PaymentStatus string
	AmountPaid    int64
	AmountDue     int64
}

// transitionFunc validates the guard and computes the next state.
// settledTotal is the sum of all settled payments, derived from storage.
type transitionFunc func(b *models.Booking, ev Event, settledTotal int64) (state, error)

// transitions is the full table of allowed moves. Statuses absent from the
// table (cancelled, completed) are terminal: every event against them fails.
// Adding a status or event kind requires revisiting this table; the
// exhaustiveness test enumerates it.
var transitions = map[string]map[Kind]transitionFunc{
	models.StatusPending: {
		KindSettle:   applySettlement,
		KindFail:     applyFailure,
		KindCancel:   applyCancel,
		KindExpire:   applyExpire,
		KindConfirm:  applyConfirm,
		KindComplete: nil, // completion requires a confirmed stay
	},
	models.StatusConfirmed: {
		KindSettle:   applySettlement,
		KindFail:     applyFailure,
		KindCancel:   applyCancel,
		KindExpire:   nil, // confirmed bookings never expire
		KindConfirm:  nil,
		KindComplete: applyComplete,
	},
}

// resolve returns the transition function for a booking/event pair, or the
// guard failure.
func resolve(b *models.Booking, ev Event) (transitionFunc, error) {
	byKind, ok := transitions[b.Status]
	if !ok {
		return nil, fmt.Errorf("booking %d is %s (terminal): %w", b.ID, b.Status, domain.ErrInvalidTransition)
	}
	fn, ok := byKind[ev.Kind()]
	if !ok || fn == nil {
		return nil, fmt.Errorf("event %s not allowed from %s: %w", ev.Kind(), b.Status, domain.ErrInvalidTransition)
	}
	return fn, nil
}

// applySettlement recomputes payment status from the derived settled total.
// Full settlement confirms the booking. Partial settlement marks
// PARTIALLY_PAID and leaves the status alone: confirmation of a partially
// paid booking requires an explicit staff Confirm.
func applySettlement(b *models.Booking, _ Event, settledTotal int64) (state, error) {
	if settledTotal <= 0 {
		return state{}, fmt.Errorf("settlement with no settled payments: %w", domain.ErrInvalidTransition)
	}

	next := state{
		Status:     b.Status,
		AmountPaid: settledTotal,
		AmountDue:  b.TotalAmount - settledTotal,
	}
	if next.AmountDue < 0 {
		next.AmountDue = 0
	}

	if settledTotal >= b.TotalAmount {
		next.Status = models.StatusConfirmed
		next.PaymentStatus = models.PaymentPaid
	} else {
		next.PaymentStatus = models.PaymentPartiallyPaid
	}
	return next, nil
}

// applyFailure marks the payment status failed only when nothing has settled;
// a partial settlement is never downgraded by a later failed attempt.
func applyFailure(b *models.Booking, _ Event, settledTotal int64) (state, error) {
	next := state{
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		AmountPaid:    b.AmountPaid,
		AmountDue:     b.AmountDue,
	}
	if settledTotal == 0 {
		next.PaymentStatus = models.PaymentFailed
	}
	return next, nil
}

// applyCancel rejects cancellation once money has settled; refunds are a
// separate staff flow.
func applyCancel(b *models.Booking, _ Event, settledTotal int64) (state, error) {
	if settledTotal > 0 {
		return state{}, fmt.Errorf("booking %d has settled payments: %w", b.ID, domain.ErrInvalidTransition)
	}
	return state{
		Status:        models.StatusCancelled,
		PaymentStatus: b.PaymentStatus,
		AmountPaid:    b.AmountPaid,
		AmountDue:     b.AmountDue,
	}, nil
}

// applyExpire is only reachable from (pending, unpaid).
func applyExpire(b *models.Booking, _ Event, _ int64) (state, error) {
	if b.PaymentStatus != models.PaymentUnpaid {
		return state{}, fmt.Errorf("booking %d is %s, not expirable: %w", b.ID, b.PaymentStatus, domain.ErrInvalidTransition)
	}
	return state{
		Status:        models.StatusCancelled,
		PaymentStatus: models.PaymentExpired,
		AmountPaid:    b.AmountPaid,
		AmountDue:     b.AmountDue,
	}, nil
}

func applyConfirm(b *models.Booking, _ Event, _ int64) (state, error) {
	return state{
		Status:        models.StatusConfirmed,
		PaymentStatus: b.PaymentStatus,
		AmountPaid:    b.AmountPaid,
		AmountDue:     b.AmountDue,
	}, nil
}

func applyComplete(b *models.Booking, _ Event, _ int64) (state, error) {
	return state{
		Status:        models.StatusCompleted,
		PaymentStatus: b.PaymentStatus,
		AmountPaid:    b.AmountPaid,
		AmountDue:     b.AmountDue,
	}, nil
}

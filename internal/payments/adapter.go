package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stayflow/internal/auth"
	"stayflow/internal/booking"
	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/metrics"
	"stayflow/internal/models"
	"stayflow/internal/pricing"

	"github.com/rs/zerolog"
)

// processedTTL is how long a handled callback key is remembered.
const processedTTL = 24 * time.Hour

// Config carries the adapter's tunables.
type Config struct {
	ProviderName  string
	Currency      string
	WebhookSecret string
	CheckoutQuota int
	QuotaWindow   time.Duration
}

// Adapter turns a validated booking into an external payment session and
// applies provider-reported outcomes to payments and, through the state
// machine, to the booking. It never marks anything paid on its own.
type Adapter struct {
	store    domain.Store
	guard    *auth.Guard
	verifier *pricing.Verifier
	bookings *booking.Service
	provider domain.ProviderClient
	state    domain.StateRepository
	recorder domain.AuditRecorder
	cfg      Config
	logger   zerolog.Logger
}

func NewAdapter(
	store domain.Store,
	guard *auth.Guard,
	verifier *pricing.Verifier,
	bookings *booking.Service,
	provider domain.ProviderClient,
	state domain.StateRepository,
	recorder domain.AuditRecorder,
	cfg Config,
	logger *zerolog.Logger,
) *Adapter {
	if cfg.CheckoutQuota <= 0 {
		cfg.CheckoutQuota = models.DefaultCheckoutQuota
	}
	if cfg.QuotaWindow <= 0 {
		cfg.QuotaWindow = models.DefaultCheckoutWindow * time.Second
	}
	log := logging.Component(logger, "payments")
	return &Adapter{
		store:    store,
		guard:    guard,
		verifier: verifier,
		bookings: bookings,
		provider: provider,
		state:    state,
		recorder: recorder,
		cfg:      cfg,
		logger:   log,
	}
}

// CreateCheckout validates preconditions in order (existence, authorization,
// not already paid, price verification), short-circuiting on the first
// failure, then creates a provider session and records a pending payment.
// A still-pending session for the same booking is reused instead of opening
// a duplicate.
func (a *Adapter) CreateCheckout(ctx context.Context, bookingID int64, actor domain.ActorContext) (*domain.CheckoutSession, error) {
	allowed, retryAfter, err := a.state.CheckQuota(ctx, throttleKey(actor), a.cfg.CheckoutQuota, a.cfg.QuotaWindow)
	if err != nil {
		a.logger.Error().Err(err).Msg("checkout quota check failed")
		// Quota store outage must not block payments.
	} else if !allowed {
		metrics.IncCheckout("rate_limited")
		return nil, &domain.RateLimitedError{RetryAfter: retryAfter}
	}

	b, err := a.store.GetBooking(ctx, bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		// Do not reveal whether the booking exists.
		metrics.IncCheckout("denied")
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if err := a.guard.Authorize(ctx, actor, b); err != nil {
		metrics.IncCheckout("denied")
		return nil, err
	}

	if b.PaymentStatus == models.PaymentPaid {
		metrics.IncCheckout("already_paid")
		return nil, fmt.Errorf("booking %s is already paid: %w", b.ShortRef, domain.ErrInvalidTransition)
	}

	result, err := a.verifier.Verify(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		metrics.IncCheckout("price_mismatch")
		return nil, result.MismatchError()
	}

	if existing, err := a.store.GetPendingPaymentForBooking(ctx, bookingID); err == nil {
		metrics.IncCheckout("reused")
		a.logger.Info().Int64("booking_id", bookingID).Str("session_id", existing.SessionID).Msg("reusing pending checkout session")
		return &domain.CheckoutSession{SessionID: existing.SessionID, CheckoutURL: existing.CheckoutURL}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	session, err := a.provider.CreateSession(ctx, b.ShortRef, b.AmountDue, a.cfg.Currency)
	if err != nil {
		metrics.IncCheckout("provider_error")
		return nil, err
	}

	payment := &models.Payment{
		BookingID:   b.ID,
		Amount:      b.AmountDue,
		Currency:    a.cfg.Currency,
		Provider:    a.cfg.ProviderName,
		Status:      models.ProviderPending,
		SessionID:   session.SessionID,
		CheckoutURL: session.CheckoutURL,
	}
	if err := a.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	if err := a.recorder.Record(ctx, models.ActionCreate, models.EntityPayment,
		fmt.Sprintf("%d", payment.ID), actor.ActorID(), nil, paymentSnapshot(payment)); err != nil {
		a.logger.Error().Err(err).Int64("payment_id", payment.ID).Msg("audit payment create")
	}

	metrics.IncCheckout("created")
	a.logger.Info().
		Int64("booking_id", b.ID).
		Str("session_id", session.SessionID).
		Int64("amount", payment.Amount).
		Msg("checkout session created")
	return session, nil
}

// CallbackPayload is the provider-originated settlement notification.
type CallbackPayload struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// HandleCallback verifies the notification really came from the provider,
// then applies the outcome at most once per session/status pair.
func (a *Adapter) HandleCallback(ctx context.Context, body []byte, signature string) error {
	if !VerifySignature(body, signature, []byte(a.cfg.WebhookSecret)) {
		metrics.IncWebhook("bad_signature")
		return domain.ErrInvalidSignature
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.IncWebhook("malformed")
		return fmt.Errorf("malformed callback payload: %w", domain.ErrValidation)
	}
	if payload.SessionID == "" {
		metrics.IncWebhook("malformed")
		return fmt.Errorf("callback missing session id: %w", domain.ErrValidation)
	}

	first, err := a.state.MarkProcessed(ctx, "webhook:"+payload.SessionID+":"+payload.Status, processedTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("idempotency check failed")
		// Fall through: the payment status re-check below still dedupes.
	} else if !first {
		metrics.IncWebhook("duplicate")
		return nil
	}

	outcome := &domain.SessionOutcome{
		SessionID:     payload.SessionID,
		Status:        payload.Status,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		FailureReason: payload.FailureReason,
	}
	if err := a.ApplyOutcome(ctx, outcome); err != nil {
		metrics.IncWebhook("error")
		return err
	}
	metrics.IncWebhook("applied")
	return nil
}

// ApplyOutcome updates the payment row and drives the booking state machine.
// Shared by the webhook path and the reconciliation worker; idempotent per
// payment because a settled or failed payment is never re-applied.
func (a *Adapter) ApplyOutcome(ctx context.Context, outcome *domain.SessionOutcome) error {
	payment, err := a.store.GetPaymentBySession(ctx, outcome.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("unknown session: %w", domain.ErrValidation)
	}
	if err != nil {
		return err
	}

	if payment.Status != models.ProviderPending {
		// Already settled or failed; nothing to apply.
		return nil
	}

	switch outcome.Status {
	case models.ProviderPaid:
		if err := a.store.UpdatePaymentStatus(ctx, payment.ID, models.ProviderPaid, ""); err != nil {
			return err
		}
		a.auditPaymentStatus(ctx, payment, models.ProviderPaid, "")
		_, err = a.bookings.Transition(ctx, payment.BookingID, booking.PaymentSettled{Amount: payment.Amount}, domain.System())
		return err
	case models.ProviderFailed:
		if err := a.store.UpdatePaymentStatus(ctx, payment.ID, models.ProviderFailed, outcome.FailureReason); err != nil {
			return err
		}
		a.auditPaymentStatus(ctx, payment, models.ProviderFailed, outcome.FailureReason)
		_, err = a.bookings.Transition(ctx, payment.BookingID, booking.PaymentFailed{Reason: outcome.FailureReason}, domain.System())
		return err
	case models.ProviderPending:
		return nil
	default:
		return fmt.Errorf("unknown provider status %q: %w", outcome.Status, domain.ErrValidation)
	}
}

func (a *Adapter) auditPaymentStatus(ctx context.Context, payment *models.Payment, status, reason string) {
	oldVals := map[string]string{"status": payment.Status}
	newVals := map[string]string{"status": status}
	if reason != "" {
		newVals["failure_reason"] = reason
	}
	if err := a.recorder.Record(ctx, models.ActionUpdate, models.EntityPayment,
		fmt.Sprintf("%d", payment.ID), nil, oldVals, newVals); err != nil {
		a.logger.Error().Err(err).Int64("payment_id", payment.ID).Msg("audit payment update")
	}
}

func paymentSnapshot(p *models.Payment) map[string]string {
	return map[string]string{
		"booking_id": fmt.Sprintf("%d", p.BookingID),
		"amount":     fmt.Sprintf("%d", p.Amount),
		"currency":   p.Currency,
		"provider":   p.Provider,
		"status":     p.Status,
		"session_id": p.SessionID,
	}
}

func throttleKey(actor domain.ActorContext) string {
	if actor.Authenticated() {
		return fmt.Sprintf("checkout:user:%d", *actor.UserID)
	}
	if actor.RemoteAddr != "" {
		return "checkout:addr:" + actor.RemoteAddr
	}
	return "checkout:anonymous"
}

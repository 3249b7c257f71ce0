package domain

import (
	"context"
	"time"

	"stayflow/internal/models"
)

// Store is the persistence boundary for the booking aggregate and its
// satellites. The booking row is the unit of mutation locking: state writes
// are conditional on the version column.
type Store interface {
	CreateBookingWithItems(ctx context.Context, booking *models.Booking, items []models.BookingItem) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByShortRef(ctx context.Context, shortRef string) (*models.Booking, error)
	GetBookingItems(ctx context.Context, bookingID int64) ([]models.BookingItem, error)
	UpdateBookingStateWithVersion(ctx context.Context, id, version int64, status, paymentStatus string, amountPaid, amountDue int64) error
	ListExpiryCandidates(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)
	ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	GetPendingPaymentForBooking(ctx context.Context, bookingID int64) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status, failureReason string) error
	SumSettledPayments(ctx context.Context, bookingID int64) (int64, error)
	ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*models.Payment, error)

	CreateVerificationToken(ctx context.Context, token *models.VerificationToken) error
	GetVerificationTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error)

	AppendAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error
	ListAuditEntries(ctx context.Context, entityType string, limit int) ([]*models.AuditLogEntry, error)

	GetRoomRate(ctx context.Context, roomID int64) (*models.RoomRate, error)
	SetRates(rates []models.RoomRate)
}

// StateRepository backs the checkout throttle and callback idempotency
// tracking. Redis in production, memory fallback in tests and on failover.
type StateRepository interface {
	CheckQuota(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (first bool, err error)
}

// EventPublisher pushes state-change notifications to the boundary.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CheckoutSession is the provider's handle for one payment attempt.
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// SessionOutcome is what the provider reports for a session, via callback or poll.
type SessionOutcome struct {
	SessionID     string
	Status        string // pending, paid, failed
	Amount        int64
	Currency      string
	FailureReason string
}

// ProviderClient is the opaque payment boundary. Its responses are the only
// source of truth for settlement.
type ProviderClient interface {
	CreateSession(ctx context.Context, bookingRef string, amount int64, currency string) (*CheckoutSession, error)
	QuerySession(ctx context.Context, sessionID string) (*SessionOutcome, error)
}

// AuditRecorder appends one immutable entry per mutating operation.
type AuditRecorder interface {
	Record(ctx context.Context, action, entityType, entityID string, actorID *int64, oldValues, newValues map[string]string) error
}

// TokenValidator resolves a guest-presented verification token.
type TokenValidator interface {
	Validate(ctx context.Context, raw string, bookingID int64, now time.Time) (TokenResult, error)
}

// TokenResult reports the outcome of a token validation.
type TokenResult struct {
	Valid     bool
	Expired   bool
	BookingID int64
}

// SheetWriter mirrors booking rows into an external spreadsheet.
type SheetWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
}

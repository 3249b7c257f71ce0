package booking

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"stayflow/internal/audit"
	"stayflow/internal/database"
	"stayflow/internal/domain"
	"stayflow/internal/events"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServiceTest(t *testing.T) (*Service, *database.Store, *events.EventBus) {
	logger := zerolog.Nop()
	store, err := database.NewStore(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := events.NewEventBus()
	recorder := audit.New(store, &logger)
	return NewService(store, recorder, bus, &logger), store, bus
}

func validBooking() (*models.Booking, []models.BookingItem) {
	booking := &models.Booking{
		TotalAmount:   20000,
		TaxAmount:     1400,
		ServiceCharge: 1000,
		GuestName:     "Ivan Sokolov",
		GuestEmail:    "ivan@example.com",
	}
	items := []models.BookingItem{{
		RoomID:        1,
		RoomName:      "Standard Double",
		CheckIn:       time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		Nights:        2,
		PriceSnapshot: 8800,
	}}
	return booking, items
}

func staffActor() domain.ActorContext {
	id := int64(100)
	return domain.ActorContext{UserID: &id, IsStaff: true}
}

func TestCreate_SetsInitialState(t *testing.T) {
	svc, store, bus := setupServiceTest(t)
	ctx := context.Background()

	var created []*events.Event
	bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		created = append(created, e)
		return nil
	})

	booking, items := validBooking()
	require.NoError(t, svc.Create(ctx, booking, items, staffActor()))

	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, models.PaymentUnpaid, booking.PaymentStatus)
	assert.Equal(t, int64(0), booking.AmountPaid)
	assert.Equal(t, int64(20000), booking.AmountDue)
	assert.True(t, strings.HasPrefix(booking.ShortRef, "SF-"))
	assert.Len(t, created, 1)

	count, err := store.CountAuditEntries(ctx, models.EntityBooking, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := setupServiceTest(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(b *models.Booking, items []models.BookingItem) ([]models.BookingItem, *models.Booking)
	}{
		{"no items", func(b *models.Booking, items []models.BookingItem) ([]models.BookingItem, *models.Booking) {
			return nil, b
		}},
		{"negative total", func(b *models.Booking, items []models.BookingItem) ([]models.BookingItem, *models.Booking) {
			b.TotalAmount = -1
			return items, b
		}},
		{"missing guest name", func(b *models.Booking, items []models.BookingItem) ([]models.BookingItem, *models.Booking) {
			b.GuestName = ""
			return items, b
		}},
		{"missing email", func(b *models.Booking, items []models.BookingItem) ([]models.BookingItem, *models.Booking) {
			b.GuestEmail = ""
			return items, b
		}},
		{"checkout before checkin", func(b *models.Booking, items []models.BookingItem) ([]models.BookingItem, *models.Booking) {
			items[0].CheckOut = items[0].CheckIn.Add(-24 * time.Hour)
			return items, b
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			booking, items := validBooking()
			items, booking = tc.mutate(booking, items)
			err := svc.Create(ctx, booking, items, staffActor())
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func createAndPay(t *testing.T, svc *Service, store *database.Store, amount int64) *models.Booking {
	t.Helper()
	ctx := context.Background()

	booking, items := validBooking()
	require.NoError(t, svc.Create(ctx, booking, items, staffActor()))

	if amount > 0 {
		payment := &models.Payment{
			BookingID: booking.ID,
			Amount:    amount,
			Currency:  "USD",
			Provider:  "stripe",
			Status:    models.ProviderPaid,
			SessionID: "cs_" + booking.ShortRef,
		}
		require.NoError(t, store.CreatePayment(ctx, payment))
	}
	return booking
}

func TestTransition_FullSettlementConfirms(t *testing.T) {
	svc, store, _ := setupServiceTest(t)
	booking := createAndPay(t, svc, store, 20000)

	updated, err := svc.Transition(context.Background(), booking.ID, PaymentSettled{Amount: 20000}, domain.System())
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, int64(20000), updated.AmountPaid)
	assert.Equal(t, int64(0), updated.AmountDue)
	assert.Equal(t, int64(2), updated.Version)
}

func TestTransition_PartialSettlementStaysPending(t *testing.T) {
	svc, store, _ := setupServiceTest(t)
	booking := createAndPay(t, svc, store, 7000)

	updated, err := svc.Transition(context.Background(), booking.ID, PaymentSettled{Amount: 7000}, domain.System())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, updated.Status)
	assert.Equal(t, models.PaymentPartiallyPaid, updated.PaymentStatus)
	assert.Equal(t, int64(7000), updated.AmountPaid)
	assert.Equal(t, int64(13000), updated.AmountDue)

	// Explicit staff confirm honors the partial balance.
	confirmed, err := svc.Transition(context.Background(), booking.ID, Confirm{}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Equal(t, models.PaymentPartiallyPaid, confirmed.PaymentStatus)
}

func TestTransition_AmountInvariant(t *testing.T) {
	svc, store, _ := setupServiceTest(t)
	booking := createAndPay(t, svc, store, 7000)

	updated, err := svc.Transition(context.Background(), booking.ID, PaymentSettled{Amount: 7000}, domain.System())
	require.NoError(t, err)
	assert.Equal(t, updated.TotalAmount, updated.AmountPaid+updated.AmountDue)
}

func TestTransition_CancelWithSettledFundsRejected(t *testing.T) {
	svc, store, _ := setupServiceTest(t)
	booking := createAndPay(t, svc, store, 7000)

	_, err := svc.Transition(context.Background(), booking.ID, PaymentSettled{Amount: 7000}, domain.System())
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), booking.ID, Cancel{}, staffActor())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransition_TerminalBookingRejectsEverything(t *testing.T) {
	svc, store, _ := setupServiceTest(t)
	booking := createAndPay(t, svc, store, 0)
	ctx := context.Background()

	_, err := svc.Transition(ctx, booking.ID, Cancel{}, staffActor())
	require.NoError(t, err)

	for _, ev := range []Event{PaymentSettled{Amount: 100}, Confirm{}, Complete{}, Expire{}} {
		_, err := svc.Transition(ctx, booking.ID, ev, staffActor())
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "event %s", ev.Kind())
	}
}

func TestTransition_NoOpSkipsAuditEntry(t *testing.T) {
	svc, store, _ := setupServiceTest(t)
	booking := createAndPay(t, svc, store, 0)
	ctx := context.Background()

	// Failure with nothing settled flips payment status once.
	updated, err := svc.Transition(ctx, booking.ID, PaymentFailed{Reason: "declined"}, domain.System())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, updated.PaymentStatus)

	countAfterFirst, err := store.CountAuditEntries(ctx, models.EntityBooking, "1")
	require.NoError(t, err)

	// Repeating the same failure changes nothing and writes nothing.
	again, err := svc.Transition(ctx, booking.ID, PaymentFailed{Reason: "declined"}, domain.System())
	require.NoError(t, err)
	assert.Equal(t, updated.Version, again.Version)

	countAfterSecond, err := store.CountAuditEntries(ctx, models.EntityBooking, "1")
	require.NoError(t, err)
	assert.Equal(t, countAfterFirst, countAfterSecond)
}

func TestTransition_CompletedLifecycle(t *testing.T) {
	svc, store, bus := setupServiceTest(t)
	booking := createAndPay(t, svc, store, 20000)
	ctx := context.Background()

	var published []string
	for _, et := range []string{events.EventBookingConfirmed, events.EventBookingCompleted, events.EventPaymentSettled} {
		eventType := et
		bus.Subscribe(eventType, func(e *events.Event) error {
			published = append(published, eventType)
			return nil
		})
	}

	_, err := svc.Transition(ctx, booking.ID, PaymentSettled{Amount: 20000}, domain.System())
	require.NoError(t, err)

	completed, err := svc.Transition(ctx, booking.ID, Complete{}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Contains(t, published, events.EventBookingCompleted)
}

// collidingStore rejects the first N creates with a duplicate-ref error and
// records every reference it was offered.
type collidingStore struct {
	domain.Store
	rejects int
	refs    []string
}

func (s *collidingStore) CreateBookingWithItems(ctx context.Context, b *models.Booking, items []models.BookingItem) error {
	s.refs = append(s.refs, b.ShortRef)
	if s.rejects > 0 {
		s.rejects--
		return fmt.Errorf("short ref %q: %w", b.ShortRef, domain.ErrDuplicateRef)
	}
	return s.Store.CreateBookingWithItems(ctx, b, items)
}

func TestCreate_RegeneratesShortRefOnCollision(t *testing.T) {
	_, store, _ := setupServiceTest(t)
	logger := zerolog.Nop()
	colliding := &collidingStore{Store: store, rejects: 1}
	svc := NewService(colliding, audit.New(store, &logger), events.NewEventBus(), &logger)

	booking, items := validBooking()
	require.NoError(t, svc.Create(context.Background(), booking, items, staffActor()))
	require.Len(t, colliding.refs, 2)
	assert.NotEqual(t, colliding.refs[0], colliding.refs[1], "a fresh reference is generated per attempt")
	assert.Equal(t, colliding.refs[1], booking.ShortRef)
}

func TestCreate_ExplicitShortRefNotRegenerated(t *testing.T) {
	_, store, _ := setupServiceTest(t)
	logger := zerolog.Nop()
	colliding := &collidingStore{Store: store, rejects: 1}
	svc := NewService(colliding, audit.New(store, &logger), events.NewEventBus(), &logger)

	booking, items := validBooking()
	booking.ShortRef = "SF-FIXED001"
	err := svc.Create(context.Background(), booking, items, staffActor())
	assert.ErrorIs(t, err, domain.ErrDuplicateRef)
	assert.Len(t, colliding.refs, 1, "caller-supplied references are never rewritten")
}

func TestNewShortRef_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref := NewShortRef()
		assert.True(t, strings.HasPrefix(ref, "SF-"))
		assert.Len(t, ref, 11)
		assert.Equal(t, strings.ToUpper(ref), ref)
		assert.False(t, seen[ref], "short refs must not repeat")
		seen[ref] = true
	}
}

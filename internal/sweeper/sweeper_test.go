package sweeper

import (
	"context"
	"testing"
	"time"

	"stayflow/internal/audit"
	"stayflow/internal/booking"
	"stayflow/internal/database"
	"stayflow/internal/domain"
	"stayflow/internal/events"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSweeperTest(t *testing.T) (*Sweeper, *booking.Service, *database.Store) {
	logger := zerolog.Nop()
	store, err := database.NewStore(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	recorder := audit.New(store, &logger)
	bookings := booking.NewService(store, recorder, events.NewEventBus(), &logger)
	return New(store, bookings, 30, &logger), bookings, store
}

func createPendingBooking(t *testing.T, bookings *booking.Service) *models.Booking {
	t.Helper()
	b := &models.Booking{
		TotalAmount: 10000,
		GuestName:   "Guest",
		GuestEmail:  "guest@example.com",
	}
	items := []models.BookingItem{{
		RoomID:   1,
		RoomName: "Standard Double",
		CheckIn:  time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		Nights:   1,
	}}
	require.NoError(t, bookings.Create(context.Background(), b, items, staffActor()))
	return b
}

func staffActor() domain.ActorContext {
	id := int64(1)
	return domain.ActorContext{UserID: &id, IsStaff: true}
}

func systemActor() domain.ActorContext {
	return domain.System()
}

func TestSweep_ExpiresStalePendingUnpaid(t *testing.T) {
	sweeper, bookings, store := setupSweeperTest(t)
	ctx := context.Background()

	b := createPendingBooking(t, bookings)

	// Past the TTL the booking expires.
	expired, err := sweeper.Sweep(ctx, b.CreatedAt.Add(30*time.Minute+time.Second))
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, expired)

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, models.PaymentExpired, got.PaymentStatus)
}

func TestSweep_ExactBoundaryNotYetEligible(t *testing.T) {
	sweeper, bookings, _ := setupSweeperTest(t)
	ctx := context.Background()

	b := createPendingBooking(t, bookings)

	// At exactly createdAt+TTL the booking survives.
	expired, err := sweeper.Sweep(ctx, b.CreatedAt.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestSweep_SkipsPartiallyPaid(t *testing.T) {
	sweeper, bookings, store := setupSweeperTest(t)
	ctx := context.Background()

	b := createPendingBooking(t, bookings)

	payment := &models.Payment{
		BookingID: b.ID, Amount: 4000, Currency: "USD", Provider: "stripe",
		Status: models.ProviderPaid, SessionID: "cs_partial",
	}
	require.NoError(t, store.CreatePayment(ctx, payment))
	_, err := bookings.Transition(ctx, b.ID, booking.PaymentSettled{Amount: 4000}, systemActor())
	require.NoError(t, err)

	expired, err := sweeper.Sweep(ctx, b.CreatedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.PaymentPartiallyPaid, got.PaymentStatus)
}

func TestSweep_Idempotent(t *testing.T) {
	sweeper, bookings, _ := setupSweeperTest(t)
	ctx := context.Background()

	b := createPendingBooking(t, bookings)
	later := b.CreatedAt.Add(time.Hour)

	first, err := sweeper.Sweep(ctx, later)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := sweeper.Sweep(ctx, later)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestSweep_MixedBatch(t *testing.T) {
	sweeper, bookings, store := setupSweeperTest(t)
	ctx := context.Background()

	stale := createPendingBooking(t, bookings)
	confirmed := createPendingBooking(t, bookings)

	payment := &models.Payment{
		BookingID: confirmed.ID, Amount: 10000, Currency: "USD", Provider: "stripe",
		Status: models.ProviderPaid, SessionID: "cs_full",
	}
	require.NoError(t, store.CreatePayment(ctx, payment))
	_, err := bookings.Transition(ctx, confirmed.ID, booking.PaymentSettled{Amount: 10000}, systemActor())
	require.NoError(t, err)

	expired, err := sweeper.Sweep(ctx, stale.CreatedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{stale.ID}, expired)
}

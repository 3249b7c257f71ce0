package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPayment(t *testing.T, store *Store, bookingID int64, amount int64, status string) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		BookingID: bookingID,
		Amount:    amount,
		Currency:  "USD",
		Provider:  "stripe",
		Status:    status,
		SessionID: fmt.Sprintf("cs_%d_%d", bookingID, time.Now().UnixNano()),
	}
	require.NoError(t, store.CreatePayment(context.Background(), payment))
	return payment
}

func TestCreateAndGetPaymentBySession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	booking, _ := newTestBooking()
	require.NoError(t, store.CreateBookingWithItems(ctx, booking, nil))

	payment := &models.Payment{
		BookingID:   booking.ID,
		Amount:      25000,
		Currency:    "USD",
		Provider:    "stripe",
		Status:      models.ProviderPending,
		SessionID:   "cs_test_123",
		CheckoutURL: "https://pay.example.com/cs_test_123",
	}
	require.NoError(t, store.CreatePayment(ctx, payment))
	assert.NotZero(t, payment.ID)

	got, err := store.GetPaymentBySession(ctx, "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.BookingID)
	assert.Equal(t, "https://pay.example.com/cs_test_123", got.CheckoutURL)

	_, err = store.GetPaymentBySession(ctx, "cs_unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPendingPaymentForBooking(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	booking, _ := newTestBooking()
	require.NoError(t, store.CreateBookingWithItems(ctx, booking, nil))

	_, err := store.GetPendingPaymentForBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	settled := createTestPayment(t, store, booking.ID, 10000, models.ProviderPaid)
	pending := createTestPayment(t, store, booking.ID, 15000, models.ProviderPending)

	got, err := store.GetPendingPaymentForBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)
	assert.NotEqual(t, settled.ID, got.ID)
}

func TestSumSettledPayments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	booking, _ := newTestBooking()
	require.NoError(t, store.CreateBookingWithItems(ctx, booking, nil))

	sum, err := store.SumSettledPayments(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	createTestPayment(t, store, booking.ID, 10000, models.ProviderPaid)
	createTestPayment(t, store, booking.ID, 5000, models.ProviderPaid)
	// Pending and failed rows never count.
	createTestPayment(t, store, booking.ID, 99999, models.ProviderPending)
	createTestPayment(t, store, booking.ID, 88888, models.ProviderFailed)

	sum, err = store.SumSettledPayments(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), sum)
}

func TestUpdatePaymentStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	booking, _ := newTestBooking()
	require.NoError(t, store.CreateBookingWithItems(ctx, booking, nil))
	payment := createTestPayment(t, store, booking.ID, 25000, models.ProviderPending)

	require.NoError(t, store.UpdatePaymentStatus(ctx, payment.ID, models.ProviderFailed, "card_declined"))

	got, err := store.GetPaymentBySession(ctx, payment.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderFailed, got.Status)
	assert.Equal(t, "card_declined", got.FailureReason)

	err = store.UpdatePaymentStatus(ctx, 9999, models.ProviderPaid, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListStalePendingPayments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	booking, _ := newTestBooking()
	require.NoError(t, store.CreateBookingWithItems(ctx, booking, nil))

	stale := createTestPayment(t, store, booking.ID, 10000, models.ProviderPending)
	fresh := createTestPayment(t, store, booking.ID, 20000, models.ProviderPending)
	settled := createTestPayment(t, store, booking.ID, 30000, models.ProviderPaid)

	deadline := time.Now().Add(-15 * time.Minute)
	_, err := store.db.Exec(`UPDATE payments SET created_at = ? WHERE id IN (?, ?)`,
		deadline.Add(-time.Minute), stale.ID, settled.ID)
	require.NoError(t, err)

	got, err := store.ListStalePendingPayments(ctx, deadline, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
	assert.NotEqual(t, fresh.ID, got[0].ID)
}

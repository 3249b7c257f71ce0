package export

import (
	"context"
	"testing"
	"time"

	"stayflow/internal/database"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupExportTest(t *testing.T) (*Exporter, *database.Store) {
	t.Helper()
	logger := zerolog.Nop()
	store, err := database.NewStore(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, t.TempDir(), &logger), store
}

func seedBooking(t *testing.T, store *database.Store, ref, status string) {
	t.Helper()
	booking := &models.Booking{
		ShortRef:      ref,
		Status:        status,
		PaymentStatus: models.PaymentUnpaid,
		TotalAmount:   25000,
		AmountDue:     25000,
		GuestName:     "Olga Ivanova",
		GuestEmail:    "olga@example.com",
	}
	items := []models.BookingItem{{
		RoomID:        1,
		RoomName:      "Deluxe King",
		CheckIn:       time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		Nights:        2,
		PriceSnapshot: 12500,
	}}
	require.NoError(t, store.CreateBookingWithItems(context.Background(), booking, items))
}

func TestExportBookings_WritesWorkbook(t *testing.T) {
	exporter, store := setupExportTest(t)
	seedBooking(t, store, "SF-EXP00001", models.StatusPending)
	seedBooking(t, store, "SF-EXP00002", models.StatusConfirmed)

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	path, err := exporter.ExportBookings(context.Background(), start, end)
	require.NoError(t, err)
	assert.Contains(t, path, ".xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Брони")
	require.NoError(t, err)
	// Title, header and one row per booking.
	require.Len(t, rows, 4)
	assert.Equal(t, "Номер", rows[1][0])

	refs := []string{rows[2][0], rows[3][0]}
	assert.Contains(t, refs, "SF-EXP00001")
	assert.Contains(t, refs, "SF-EXP00002")
}

func TestExportBookings_EmptyRange(t *testing.T) {
	exporter, _ := setupExportTest(t)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	path, err := exporter.ExportBookings(context.Background(), start, end)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Брони")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "only title and header without bookings")
}

func TestExportAuditTrail(t *testing.T) {
	exporter, store := setupExportTest(t)
	ctx := context.Background()

	actorID := int64(100)
	require.NoError(t, store.AppendAuditEntry(ctx, &models.AuditLogEntry{
		Action:     models.ActionUpdate,
		EntityType: models.EntityBooking,
		EntityID:   "1",
		ActorID:    &actorID,
		OldValues:  map[string]string{"status": "pending"},
		NewValues:  map[string]string{"status": "confirmed"},
	}))

	path, err := exporter.ExportAuditTrail(ctx, models.EntityBooking, 100)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Журнал")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.ActionUpdate, rows[1][1])
	assert.Equal(t, "100", rows[1][4])
	assert.Contains(t, rows[1][6], "status=confirmed")
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "Подтверждена", statusLabel(models.StatusConfirmed))
	assert.Equal(t, "Отменена", statusLabel(models.StatusCancelled))
	assert.Equal(t, "unknown", statusLabel("unknown"))

	assert.Equal(t, "Оплачена", paymentLabel(models.PaymentPaid))
	assert.Equal(t, "Частично", paymentLabel(models.PaymentPartiallyPaid))
}

func TestFlattenValues(t *testing.T) {
	assert.Equal(t, "", flattenValues(nil))
	assert.Equal(t, "status=paid", flattenValues(map[string]string{"status": "paid"}))
}

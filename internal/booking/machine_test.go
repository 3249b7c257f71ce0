package booking

import (
	"testing"

	"stayflow/internal/domain"
	"stayflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingBooking() *models.Booking {
	return &models.Booking{
		ID:            1,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
		TotalAmount:   20000,
		AmountDue:     20000,
	}
}

func TestResolve_TerminalStatuses(t *testing.T) {
	allEvents := []Event{PaymentSettled{Amount: 100}, PaymentFailed{}, Cancel{}, Expire{}, Confirm{}, Complete{}}

	for _, status := range []string{models.StatusCancelled, models.StatusCompleted} {
		b := pendingBooking()
		b.Status = status
		for _, ev := range allEvents {
			_, err := resolve(b, ev)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition,
				"status %s must reject %s", status, ev.Kind())
		}
	}
}

// TestTransitionTable_Exhaustive pins down the full matrix so a new status or
// event kind cannot be added without deciding every cell.
func TestTransitionTable_Exhaustive(t *testing.T) {
	allKinds := []Kind{KindSettle, KindFail, KindCancel, KindExpire, KindConfirm, KindComplete}
	allowed := map[string]map[Kind]bool{
		models.StatusPending: {
			KindSettle: true, KindFail: true, KindCancel: true,
			KindExpire: true, KindConfirm: true, KindComplete: false,
		},
		models.StatusConfirmed: {
			KindSettle: true, KindFail: true, KindCancel: true,
			KindExpire: false, KindConfirm: false, KindComplete: true,
		},
	}

	for status, byKind := range allowed {
		require.Contains(t, transitions, status)
		require.Len(t, transitions[status], len(allKinds))
		for _, kind := range allKinds {
			fn := transitions[status][kind]
			if byKind[kind] {
				assert.NotNil(t, fn, "%s/%s must be allowed", status, kind)
			} else {
				assert.Nil(t, fn, "%s/%s must be disallowed", status, kind)
			}
		}
	}
	assert.Len(t, transitions, 2)
}

func TestApplySettlement_Full(t *testing.T) {
	b := pendingBooking()
	next, err := applySettlement(b, PaymentSettled{Amount: 20000}, 20000)
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, next.Status)
	assert.Equal(t, models.PaymentPaid, next.PaymentStatus)
	assert.Equal(t, int64(20000), next.AmountPaid)
	assert.Equal(t, int64(0), next.AmountDue)
}

func TestApplySettlement_PartialKeepsStatus(t *testing.T) {
	b := pendingBooking()
	next, err := applySettlement(b, PaymentSettled{Amount: 8000}, 8000)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, next.Status)
	assert.Equal(t, models.PaymentPartiallyPaid, next.PaymentStatus)
	assert.Equal(t, int64(8000), next.AmountPaid)
	assert.Equal(t, int64(12000), next.AmountDue)
}

func TestApplySettlement_OverpaymentClampsDue(t *testing.T) {
	b := pendingBooking()
	next, err := applySettlement(b, PaymentSettled{Amount: 25000}, 25000)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentPaid, next.PaymentStatus)
	assert.Equal(t, int64(25000), next.AmountPaid)
	assert.Equal(t, int64(0), next.AmountDue)
}

func TestApplySettlement_NothingSettled(t *testing.T) {
	_, err := applySettlement(pendingBooking(), PaymentSettled{}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyFailure_OnlyWhenUnsettled(t *testing.T) {
	b := pendingBooking()
	next, err := applyFailure(b, PaymentFailed{Reason: "card_declined"}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, next.PaymentStatus)
	assert.Equal(t, models.StatusPending, next.Status)

	// A failed attempt after a partial settlement changes nothing.
	b.PaymentStatus = models.PaymentPartiallyPaid
	b.AmountPaid = 8000
	b.AmountDue = 12000
	next, err = applyFailure(b, PaymentFailed{Reason: "card_declined"}, 8000)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartiallyPaid, next.PaymentStatus)
	assert.Equal(t, int64(8000), next.AmountPaid)
}

func TestApplyCancel_RejectsSettledFunds(t *testing.T) {
	b := pendingBooking()
	next, err := applyCancel(b, Cancel{}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, next.Status)

	_, err = applyCancel(b, Cancel{}, 5000)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApplyExpire_RequiresUnpaid(t *testing.T) {
	b := pendingBooking()
	next, err := applyExpire(b, Expire{}, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, next.Status)
	assert.Equal(t, models.PaymentExpired, next.PaymentStatus)

	for _, paymentStatus := range []string{
		models.PaymentPartiallyPaid, models.PaymentPaid, models.PaymentFailed,
	} {
		b := pendingBooking()
		b.PaymentStatus = paymentStatus
		_, err := applyExpire(b, Expire{}, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "payment status %s", paymentStatus)
	}
}

func TestApplyConfirm_PartiallyPaid(t *testing.T) {
	b := pendingBooking()
	b.PaymentStatus = models.PaymentPartiallyPaid
	b.AmountPaid = 8000
	b.AmountDue = 12000

	next, err := applyConfirm(b, Confirm{}, 8000)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, next.Status)
	assert.Equal(t, models.PaymentPartiallyPaid, next.PaymentStatus)
}

func TestApplyComplete(t *testing.T) {
	b := pendingBooking()
	b.Status = models.StatusConfirmed
	b.PaymentStatus = models.PaymentPaid
	b.AmountPaid = 20000
	b.AmountDue = 0

	next, err := applyComplete(b, Complete{}, 20000)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, next.Status)
	assert.Equal(t, models.PaymentPaid, next.PaymentStatus)
}

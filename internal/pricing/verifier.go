package pricing

import (
	"context"
	"fmt"
	"math"

	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
)

// Result compares the total persisted at booking time against a total
// recomputed from the authoritative current rates.
type Result struct {
	Valid           bool    `json:"valid"`
	StoredTotal     int64   `json:"stored_total"`
	CalculatedTotal int64   `json:"calculated_total"`
	PercentageDiff  float64 `json:"percentage_diff"`
	Reason          string  `json:"reason,omitempty"`
}

// Verifier recomputes an expected charge strictly from rate data. Client
// supplied values never enter the calculation.
type Verifier struct {
	store            domain.Store
	tolerancePercent float64
	logger           zerolog.Logger
}

func New(store domain.Store, tolerancePercent float64, logger *zerolog.Logger) *Verifier {
	if tolerancePercent <= 0 {
		tolerancePercent = models.DefaultPriceTolerancePercent
	}
	return &Verifier{store: store, tolerancePercent: tolerancePercent, logger: logging.Component(logger, "pricing")}
}

// Verify recomputes the expected total for a booking's rooms and date ranges
// and compares it against the stored totalAmount.
func (v *Verifier) Verify(ctx context.Context, bookingID int64) (*Result, error) {
	booking, err := v.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	items, err := v.store.GetBookingItems(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &Result{
			Valid:       false,
			StoredTotal: booking.TotalAmount,
			Reason:      "booking has no items",
		}, nil
	}

	calculated, err := v.CalculateTotal(ctx, items)
	if err != nil {
		return nil, err
	}

	result := &Result{
		StoredTotal:     booking.TotalAmount,
		CalculatedTotal: calculated,
	}

	if booking.TotalAmount == calculated {
		result.Valid = true
		return result, nil
	}

	result.PercentageDiff = percentDiff(booking.TotalAmount, calculated)
	if result.PercentageDiff <= v.tolerancePercent {
		result.Valid = true
		return result, nil
	}

	result.Reason = "rate changed after booking was created"
	v.logger.Warn().
		Int64("booking_id", bookingID).
		Int64("stored", booking.TotalAmount).
		Int64("calculated", calculated).
		Float64("diff_percent", result.PercentageDiff).
		Msg("price verification failed")
	return result, nil
}

// CalculateTotal sums nightly rate times nights per item, plus tax and
// service charges at the current rates.
func (v *Verifier) CalculateTotal(ctx context.Context, items []models.BookingItem) (int64, error) {
	var total int64
	for _, item := range items {
		rate, err := v.store.GetRoomRate(ctx, item.RoomID)
		if err != nil {
			return 0, fmt.Errorf("rate for room %d: %w", item.RoomID, err)
		}
		nights := item.Nights
		if nights <= 0 {
			nights = int64(item.CheckOut.Sub(item.CheckIn).Hours() / 24)
		}
		base := rate.NightlyRate * nights
		tax := int64(math.Round(float64(base) * rate.TaxRate))
		service := int64(math.Round(float64(base) * rate.ServiceRate))
		total += base + tax + service
	}
	return total, nil
}

// MismatchError builds the typed checkout-blocking error from a failed result.
func (r *Result) MismatchError() *domain.PriceMismatchError {
	return &domain.PriceMismatchError{
		StoredTotal:     r.StoredTotal,
		CalculatedTotal: r.CalculatedTotal,
		PercentageDiff:  r.PercentageDiff,
		Reason:          r.Reason,
	}
}

func percentDiff(stored, calculated int64) float64 {
	if stored == 0 {
		if calculated == 0 {
			return 0
		}
		return 100
	}
	return math.Abs(float64(calculated-stored)) / float64(stored) * 100
}

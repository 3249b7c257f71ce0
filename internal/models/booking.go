package models

import "time"

type Booking struct {
	ID            int64     `json:"id"`
	ShortRef      string    `json:"short_ref"`
	Status        string    `json:"status"`         // pending, confirmed, cancelled, completed
	PaymentStatus string    `json:"payment_status"` // unpaid, partially_paid, paid, refunded, failed, expired
	TotalAmount   int64     `json:"total_amount"`   // minor units
	TaxAmount     int64     `json:"tax_amount"`
	ServiceCharge int64     `json:"service_charge"`
	AmountPaid    int64     `json:"amount_paid"`
	AmountDue     int64     `json:"amount_due"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	GuestPhone    string    `json:"guest_phone"`
	UserID        *int64    `json:"user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`

	Items []BookingItem `json:"items,omitempty"`
}

type BookingItem struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	RoomID        int64     `json:"room_id"`
	RoomName      string    `json:"room_name"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Nights        int64     `json:"nights"`
	PriceSnapshot int64     `json:"price_snapshot"` // nightly rate at creation, minor units
}

// Owned reports whether the booking belongs to an authenticated user.
func (b *Booking) Owned() bool {
	return b.UserID != nil && *b.UserID != 0
}

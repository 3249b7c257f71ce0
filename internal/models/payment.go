package models

import "time"

type Payment struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	Amount        int64     `json:"amount"` // minor units
	Currency      string    `json:"currency"`
	Provider      string    `json:"provider"`
	Status        string    `json:"status"` // pending, paid, failed
	SessionID     string    `json:"session_id"`
	CheckoutURL   string    `json:"checkout_url,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type VerificationToken struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	TokenHash string    `json:"-"` // keyed digest, plaintext is never persisted
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomRate struct {
	RoomID      int64   `json:"room_id" yaml:"room_id"`
	RoomName    string  `json:"room_name" yaml:"room_name"`
	NightlyRate int64   `json:"nightly_rate" yaml:"nightly_rate"` // minor units
	TaxRate     float64 `json:"tax_rate" yaml:"tax_rate"`         // fraction, e.g. 0.07
	ServiceRate float64 `json:"service_rate" yaml:"service_rate"`
	IsActive    bool    `json:"is_active" yaml:"is_active"`
}

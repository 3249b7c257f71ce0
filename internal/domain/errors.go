package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrUnauthorized           = errors.New("access denied")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid booking transition")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrExternalService        = errors.New("payment provider unavailable")
	ErrInvalidToken           = errors.New("invalid verification token")
	ErrExpiredToken           = errors.New("verification token expired")
	ErrInvalidSignature       = errors.New("invalid callback signature")
	ErrDuplicateRef           = errors.New("short reference already exists")
)

// PriceMismatchError blocks checkout when the recomputed total diverges from
// the stored one beyond tolerance. Recoverable by the client refreshing the quote.
type PriceMismatchError struct {
	StoredTotal     int64
	CalculatedTotal int64
	PercentageDiff  float64
	Reason          string
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch: stored=%d calculated=%d diff=%.2f%% (%s)",
		e.StoredTotal, e.CalculatedTotal, e.PercentageDiff, e.Reason)
}

// RateLimitedError carries a retry-after hint for throttled checkout attempts.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func IsPriceMismatch(err error) bool {
	var pm *PriceMismatchError
	return errors.As(err, &pm)
}

func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

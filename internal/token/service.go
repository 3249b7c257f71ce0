package token

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
)

// Service issues and validates opaque verification tokens that grant guest
// access to exactly one booking without a session. Only a keyed digest of the
// token is stored; hashing both sides before lookup makes the comparison
// fixed-length and constant-time.
type Service struct {
	store   domain.Store
	hashKey []byte
	ttl     time.Duration
	logger  zerolog.Logger
}

func New(store domain.Store, hashKey string, ttlDays int, logger *zerolog.Logger) *Service {
	if ttlDays <= 0 {
		ttlDays = models.DefaultTokenTTLDays
	}
	log := logging.Component(logger, "token")
	return &Service{
		store:   store,
		hashKey: []byte(hashKey),
		ttl:     time.Duration(ttlDays) * 24 * time.Hour,
		logger:  log,
	}
}

// Issue generates a random opaque token bound to one booking id and persists
// its digest with a fixed lifetime. The plaintext is returned once and never
// stored.
func (s *Service) Issue(ctx context.Context, bookingID int64) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	plaintext := hex.EncodeToString(raw)
	expiresAt := time.Now().Add(s.ttl)

	t := &models.VerificationToken{
		BookingID: bookingID,
		TokenHash: s.digest(plaintext),
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateVerificationToken(ctx, t); err != nil {
		return "", time.Time{}, err
	}

	s.logger.Debug().Int64("booking_id", bookingID).Time("expires_at", expiresAt).Msg("verification token issued")
	return plaintext, expiresAt, nil
}

// Validate resolves a presented token against a booking id at a given instant.
// Expiry is strict: at now == expiresAt the token is still valid; it expires
// only once now is after the threshold. A token issued for another booking is
// invalid regardless of expiry.
func (s *Service) Validate(ctx context.Context, raw string, bookingID int64, now time.Time) (domain.TokenResult, error) {
	if raw == "" {
		return domain.TokenResult{}, nil
	}

	digest := s.digest(raw)
	stored, err := s.store.GetVerificationTokenByHash(ctx, digest)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TokenResult{}, nil
	}
	if err != nil {
		return domain.TokenResult{}, err
	}

	// Final equality over the fixed-length digests must stay constant-time.
	if !hmac.Equal([]byte(stored.TokenHash), []byte(digest)) {
		return domain.TokenResult{}, nil
	}

	// Binding comes before expiry: a token for another booking stays a
	// generic denial and never reveals its expiry state.
	if bookingID != 0 && stored.BookingID != bookingID {
		return domain.TokenResult{}, nil
	}
	if now.After(stored.ExpiresAt) {
		return domain.TokenResult{Expired: true, BookingID: stored.BookingID}, nil
	}

	return domain.TokenResult{Valid: true, BookingID: stored.BookingID}, nil
}

func (s *Service) digest(plaintext string) string {
	mac := hmac.New(sha256.New, s.hashKey)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

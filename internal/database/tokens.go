package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/models"
)

func (s *Store) CreateVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (booking_id, token_hash, expires_at, created_at)
         VALUES (?, ?, ?, ?)`,
		token.BookingID, token.TokenHash, token.ExpiresAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	token.ID = id
	token.CreatedAt = now
	return nil
}

// GetVerificationTokenByHash looks a token up by its keyed digest. Lookup by
// digest keeps raw token material out of queries and logs.
func (s *Store) GetVerificationTokenByHash(ctx context.Context, tokenHash string) (*models.VerificationToken, error) {
	var t models.VerificationToken
	err := s.db.QueryRowContext(ctx,
		`SELECT id, booking_id, token_hash, expires_at, created_at
         FROM verification_tokens WHERE token_hash = ?`,
		tokenHash,
	).Scan(&t.ID, &t.BookingID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}
	return &t, nil
}

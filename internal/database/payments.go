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

const paymentColumns = `id, booking_id, amount, currency, provider, status, session_id,
                 checkout_url, failure_reason, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var checkoutURL, failureReason sql.NullString
	err := row.Scan(
		&p.ID, &p.BookingID, &p.Amount, &p.Currency, &p.Provider, &p.Status,
		&p.SessionID, &checkoutURL, &failureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CheckoutURL = checkoutURL.String
	p.FailureReason = failureReason.String
	return p, nil
}

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `INSERT INTO payments (
				booking_id, amount, currency, provider, status, session_id,
				checkout_url, failure_reason, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.BookingID,
		payment.Amount,
		payment.Currency,
		payment.Provider,
		payment.Status,
		payment.SessionID,
		payment.CheckoutURL,
		payment.FailureReason,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	payment.ID = id
	payment.CreatedAt = now
	payment.UpdatedAt = now
	return nil
}

func (s *Store) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = ?`
	p, err := scanPayment(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by session: %w", err)
	}
	return p, nil
}

// GetPendingPaymentForBooking returns the most recent pending payment, if any.
func (s *Store) GetPendingPaymentForBooking(ctx context.Context, bookingID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
              FROM payments WHERE booking_id = ? AND status = ?
              ORDER BY created_at DESC LIMIT 1`
	p, err := scanPayment(s.db.QueryRowContext(ctx, query, bookingID, models.ProviderPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending payment: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id int64, status, failureReason string) error {
	query := `UPDATE payments SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, status, failureReason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SumSettledPayments derives the booking's paid amount from settled rows,
// not from the latest attempt.
func (s *Store) SumSettledPayments(ctx context.Context, bookingID int64) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE booking_id = ? AND status = ?`
	var sum int64
	err := s.db.QueryRowContext(ctx, query, bookingID, models.ProviderPaid).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum settled payments: %w", err)
	}
	return sum, nil
}

// ListStalePendingPayments returns pending payments older than the deadline
// for the reconciliation worker.
func (s *Store) ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
              FROM payments WHERE status = ? AND created_at < ?
              ORDER BY created_at ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, models.ProviderPending, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

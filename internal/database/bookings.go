package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/models"

	sqlite3 "github.com/mattn/go-sqlite3"
)

func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), column)
}

const bookingColumns = `id, short_ref, status, payment_status, total_amount, tax_amount,
                 service_charge, amount_paid, amount_due, guest_name, guest_email,
                 guest_phone, user_id, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	var userID sql.NullInt64
	var guestPhone sql.NullString
	err := row.Scan(
		&b.ID, &b.ShortRef, &b.Status, &b.PaymentStatus, &b.TotalAmount, &b.TaxAmount,
		&b.ServiceCharge, &b.AmountPaid, &b.AmountDue, &b.GuestName, &b.GuestEmail,
		&guestPhone, &userID, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		b.UserID = &userID.Int64
	}
	b.GuestPhone = guestPhone.String
	return b, nil
}

// CreateBookingWithItems inserts the booking and its items in one transaction.
func (s *Store) CreateBookingWithItems(ctx context.Context, booking *models.Booking, items []models.BookingItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx, `INSERT INTO bookings (
				short_ref, status, payment_status, total_amount, tax_amount, service_charge,
				amount_paid, amount_due, guest_name, guest_email, guest_phone, user_id,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ShortRef,
		booking.Status,
		booking.PaymentStatus,
		booking.TotalAmount,
		booking.TaxAmount,
		booking.ServiceCharge,
		booking.AmountPaid,
		booking.AmountDue,
		booking.GuestName,
		booking.GuestEmail,
		booking.GuestPhone,
		booking.UserID,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err, "bookings.short_ref") {
			return fmt.Errorf("short ref %q: %w", booking.ShortRef, domain.ErrDuplicateRef)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i := range items {
		items[i].BookingID = id
		res, err := tx.ExecContext(ctx, `INSERT INTO booking_items (
					booking_id, room_id, room_name, check_in, check_out, nights, price_snapshot
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id,
			items[i].RoomID,
			items[i].RoomName,
			items[i].CheckIn,
			items[i].CheckOut,
			items[i].Nights,
			items[i].PriceSnapshot,
		)
		if err != nil {
			return fmt.Errorf("failed to insert booking item: %w", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get item insert id: %w", err)
		}
		items[i].ID = itemID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	booking.Items = items
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (s *Store) GetBookingByShortRef(ctx context.Context, shortRef string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE short_ref = ?`
	b, err := scanBooking(s.db.QueryRowContext(ctx, query, shortRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by short ref: %w", err)
	}
	return b, nil
}

func (s *Store) GetBookingItems(ctx context.Context, bookingID int64) ([]models.BookingItem, error) {
	query := `SELECT id, booking_id, room_id, room_name, check_in, check_out, nights, price_snapshot
              FROM booking_items WHERE booking_id = ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking items: %w", err)
	}
	defer rows.Close()

	var items []models.BookingItem
	for rows.Next() {
		var it models.BookingItem
		err := rows.Scan(&it.ID, &it.BookingID, &it.RoomID, &it.RoomName,
			&it.CheckIn, &it.CheckOut, &it.Nights, &it.PriceSnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateBookingStateWithVersion applies a full state write guarded by the
// version column. Zero rows affected means the booking changed underneath.
func (s *Store) UpdateBookingStateWithVersion(ctx context.Context, id, version int64, status, paymentStatus string, amountPaid, amountDue int64) error {
	query := `UPDATE bookings
              SET status = ?, payment_status = ?, amount_paid = ?, amount_due = ?,
                  version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := s.db.ExecContext(ctx, query, status, paymentStatus, amountPaid, amountDue, time.Now(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update booking state: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

// ListExpiryCandidates returns bookings eligible for expiration: pending,
// unpaid, created strictly before the cutoff. The boundary is exclusive.
func (s *Store) ListExpiryCandidates(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings
              WHERE status = ? AND payment_status = ? AND created_at < ?
              ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, models.StatusPending, models.PaymentUnpaid, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiry candidates: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *Store) ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetRoomRate resolves the current rate for a room. Rooms retired in the
// rates file stay in the cache but are not offered for pricing.
func (s *Store) GetRoomRate(ctx context.Context, roomID int64) (*models.RoomRate, error) {
	s.mu.RLock()
	rate, ok := s.ratesCache[roomID]
	s.mu.RUnlock()
	if !ok || !rate.IsActive {
		return nil, fmt.Errorf("no active rate for room %d: %w", roomID, domain.ErrNotFound)
	}
	return &rate, nil
}

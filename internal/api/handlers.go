package api

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stayflow/internal/booking"
	"stayflow/internal/domain"
	"stayflow/internal/models"

	"github.com/google/uuid"
)

// actorFromRequest assembles the caller identity from the resolved API client
// key and the identity headers set by the gateway.
func actorFromRequest(r *http.Request) domain.ActorContext {
	actor := domain.ActorContext{
		Email:      strings.TrimSpace(r.Header.Get("X-User-Email")),
		Token:      strings.TrimSpace(r.URL.Query().Get("token")),
		RemoteAddr: remoteHost(r),
		RequestID:  strings.TrimSpace(r.Header.Get("X-Request-ID")),
	}
	if actor.RequestID == "" {
		actor.RequestID = uuid.NewString()
	}

	if raw := strings.TrimSpace(r.Header.Get("X-User-ID")); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			actor.UserID = &id
		}
	}

	if client, ok := ClientFromContext(r.Context()); ok {
		actor.IsStaff = IsStaff(client)
	}
	return actor
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// handleSweep is the cron entry point. It authenticates with a shared secret,
// not an API key, so the scheduler needs no client registration.
func (s *HTTPServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	secret := r.Header.Get("X-Cron-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.CronSecret)) != 1 {
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
		return
	}

	expired, err := s.sweep.Sweep(r.Context(), time.Now())
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"expired_count": len(expired),
		"expired_ids":   expired,
	})
}

type checkoutRequest struct {
	BookingID int64  `json:"booking_id"`
	Token     string `json:"token,omitempty"`
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	var body checkoutRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}
	if body.BookingID <= 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "booking_id is required")
		return
	}

	actor := actorFromRequest(r)
	if body.Token != "" {
		actor.Token = body.Token
	}

	session, err := s.checkout.CreateCheckout(r.Context(), body.BookingID, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":   session.SessionID,
		"checkout_url": session.CheckoutURL,
	})
}

// handleLookup resolves a booking by short reference, by numeric id, or, when
// neither is given, by the verification token alone: the token digest names
// the booking it was issued for.
func (s *HTTPServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	actor := actorFromRequest(r)
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	rawID := strings.TrimSpace(r.URL.Query().Get("booking_id"))

	var found *models.Booking
	var err error
	switch {
	case ref != "":
		found, err = s.bookings.GetByShortRef(r.Context(), ref)
	case rawID != "":
		id, convErr := strconv.ParseInt(rawID, 10, 64)
		if convErr != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid booking_id")
			return
		}
		found, err = s.bookings.Get(r.Context(), id)
	case actor.Token != "":
		result, vErr := s.tokens.Validate(r.Context(), actor.Token, 0, time.Now())
		if vErr != nil {
			respondError(w, vErr)
			return
		}
		if result.Expired {
			respondError(w, domain.ErrExpiredToken)
			return
		}
		if !result.Valid {
			writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
			return
		}
		found, err = s.bookings.Get(r.Context(), result.BookingID)
	default:
		writeError(w, http.StatusBadRequest, codeValidation, "ref, booking_id or token is required")
		return
	}
	if err != nil {
		// Unknown bookings and denied bookings look identical to the caller.
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
		return
	}

	if err := s.guard.Authorize(r.Context(), actor, found); err != nil {
		respondError(w, err)
		return
	}

	full, err := s.bookings.Get(r.Context(), found.ID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingView(full))
}

// handleBookingSubtree routes GET /api/v1/bookings/{id}/events.
func (s *HTTPServer) handleBookingSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "events" {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid booking id")
		return
	}

	found, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
		return
	}

	actor := actorFromRequest(r)
	if err := s.guard.Authorize(r.Context(), actor, found); err != nil {
		respondError(w, err)
		return
	}

	var afterSeq int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		afterSeq, _ = strconv.ParseInt(raw, 10, 64)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.feed.Since(id, afterSeq),
	})
}

func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "cannot read body")
		return
	}

	signature := r.Header.Get("X-Signature")
	if err := s.checkout.HandleCallback(r.Context(), body, signature); err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type createBookingRequest struct {
	GuestName     string                     `json:"guest_name"`
	GuestEmail    string                     `json:"guest_email"`
	GuestPhone    string                     `json:"guest_phone"`
	UserID        *int64                     `json:"user_id,omitempty"`
	TotalAmount   int64                      `json:"total_amount"`
	TaxAmount     int64                      `json:"tax_amount"`
	ServiceCharge int64                      `json:"service_charge"`
	Items         []createBookingItemRequest `json:"items"`
}

type createBookingItemRequest struct {
	RoomID        int64  `json:"room_id"`
	RoomName      string `json:"room_name"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	PriceSnapshot int64  `json:"price_snapshot"`
}

func (s *HTTPServer) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	actor := actorFromRequest(r)
	if !actor.IsStaff {
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
		return
	}

	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}

	items := make([]models.BookingItem, 0, len(body.Items))
	for _, item := range body.Items {
		checkIn, err := time.Parse("2006-01-02", item.CheckIn)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid check_in date; expected YYYY-MM-DD")
			return
		}
		checkOut, err := time.Parse("2006-01-02", item.CheckOut)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid check_out date; expected YYYY-MM-DD")
			return
		}
		items = append(items, models.BookingItem{
			RoomID:        item.RoomID,
			RoomName:      item.RoomName,
			CheckIn:       checkIn,
			CheckOut:      checkOut,
			Nights:        int64(checkOut.Sub(checkIn).Hours() / 24),
			PriceSnapshot: item.PriceSnapshot,
		})
	}

	newBooking := &models.Booking{
		GuestName:     body.GuestName,
		GuestEmail:    body.GuestEmail,
		GuestPhone:    body.GuestPhone,
		UserID:        body.UserID,
		TotalAmount:   body.TotalAmount,
		TaxAmount:     body.TaxAmount,
		ServiceCharge: body.ServiceCharge,
	}

	if err := s.bookings.Create(r.Context(), newBooking, items, actor); err != nil {
		respondError(w, err)
		return
	}

	plaintext, expiresAt, err := s.tokens.Issue(r.Context(), newBooking.ID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"booking":            bookingView(newBooking),
		"verification_token": plaintext,
		"token_expires_at":   expiresAt.Format(time.RFC3339),
	})
}

// handleAdminBookingAction routes POST /api/v1/admin/bookings/{id}/{action}.
func (s *HTTPServer) handleAdminBookingAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	actor := actorFromRequest(r)
	if !actor.IsStaff {
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/bookings/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid booking id")
		return
	}

	var ev booking.Event
	switch parts[1] {
	case "confirm":
		ev = booking.Confirm{}
	case "cancel":
		ev = booking.Cancel{}
	case "complete":
		ev = booking.Complete{}
	default:
		writeError(w, http.StatusNotFound, codeNotFound, "unknown action")
		return
	}

	updated, err := s.bookings.Transition(r.Context(), id, ev, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingView(updated))
}

type exportRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	actor := actorFromRequest(r)
	if !actor.IsStaff {
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
		return
	}

	var body exportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}

	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid start_date; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid end_date; expected YYYY-MM-DD")
		return
	}

	filePath, err := s.exporter.ExportBookings(r.Context(), start, end)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"file": filePath})
}

type auditExportRequest struct {
	EntityType string `json:"entity_type"`
	Limit      int    `json:"limit"`
}

func (s *HTTPServer) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed")
		return
	}

	actor := actorFromRequest(r)
	if !actor.IsStaff {
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
		return
	}

	var body auditExportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}
	if body.EntityType == "" {
		body.EntityType = models.EntityBooking
	}

	filePath, err := s.exporter.ExportAuditTrail(r.Context(), body.EntityType, body.Limit)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"file": filePath})
}

type bookingItemView struct {
	RoomID        int64  `json:"room_id"`
	RoomName      string `json:"room_name"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Nights        int64  `json:"nights"`
	PriceSnapshot int64  `json:"price_snapshot"`
}

type bookingResponse struct {
	ID            int64             `json:"id"`
	ShortRef      string            `json:"short_ref"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	TotalAmount   int64             `json:"total_amount"`
	TaxAmount     int64             `json:"tax_amount"`
	ServiceCharge int64             `json:"service_charge"`
	AmountPaid    int64             `json:"amount_paid"`
	AmountDue     int64             `json:"amount_due"`
	GuestName     string            `json:"guest_name"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
	Items         []bookingItemView `json:"items,omitempty"`
}

// bookingView strips internal fields (version, contact details beyond name)
// from the API representation.
func bookingView(b *models.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID,
		ShortRef:      b.ShortRef,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		TotalAmount:   b.TotalAmount,
		TaxAmount:     b.TaxAmount,
		ServiceCharge: b.ServiceCharge,
		AmountPaid:    b.AmountPaid,
		AmountDue:     b.AmountDue,
		GuestName:     b.GuestName,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     b.UpdatedAt.Format(time.RFC3339),
	}
	for _, item := range b.Items {
		resp.Items = append(resp.Items, bookingItemView{
			RoomID:        item.RoomID,
			RoomName:      item.RoomName,
			CheckIn:       item.CheckIn.Format("2006-01-02"),
			CheckOut:      item.CheckOut.Format("2006-01-02"),
			Nights:        item.Nights,
			PriceSnapshot: item.PriceSnapshot,
		})
	}
	return resp
}

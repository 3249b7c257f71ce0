package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"stayflow/internal/auth"
	"stayflow/internal/booking"
	"stayflow/internal/config"
	"stayflow/internal/domain"
	"stayflow/internal/events"
	"stayflow/internal/export"
	"stayflow/internal/logging"
	"stayflow/internal/metrics"
	"stayflow/internal/payments"
	"stayflow/internal/sweeper"
	"stayflow/internal/token"

	"github.com/rs/zerolog"
)

const (
	codeValidation        = "VALIDATION"
	codeUnauthorized      = "UNAUTHORIZED"
	codeNotFound          = "NOT_FOUND"
	codeRateLimited       = "RATE_LIMITED"
	codePriceMismatch     = "PRICE_MISMATCH"
	codeTokenExpired      = "TOKEN_EXPIRED"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeConflict          = "CONFLICT"
	codeExternal          = "EXTERNAL_ERROR"
	codeInternal          = "INTERNAL"
)

// HTTPServer exposes the booking lifecycle API: guest checkout and lookup,
// the payment callback, the cron sweep trigger, and the staff surface.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings *booking.Service
	checkout *payments.Adapter
	sweep    *sweeper.Sweeper
	tokens   *token.Service
	guard    *auth.Guard
	exporter *export.Exporter
	feed     *events.Feed
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookings *booking.Service,
	checkout *payments.Adapter,
	sweep *sweeper.Sweeper,
	tokens *token.Service,
	guard *auth.Guard,
	exporter *export.Exporter,
	feed *events.Feed,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		checkout: checkout,
		sweep:    sweep,
		tokens:   tokens,
		guard:    guard,
		exporter: exporter,
		feed:     feed,
	}
	srv.logger = logging.Component(logger, "http")
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/sweep", srv.handleSweep)
	mux.HandleFunc("/api/v1/checkout", srv.handleCheckout)
	mux.HandleFunc("/api/v1/bookings/lookup", srv.handleLookup)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingSubtree)
	mux.HandleFunc("/api/v1/webhooks/payment", srv.handleWebhook)
	mux.HandleFunc("/api/v1/admin/bookings", srv.handleAdminCreate)
	mux.HandleFunc("/api/v1/admin/bookings/", srv.handleAdminBookingAction)
	mux.HandleFunc("/api/v1/admin/exports/bookings", srv.handleExportBookings)
	mux.HandleFunc("/api/v1/admin/exports/audit", srv.handleExportAudit)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, map[string]string{"code": code, "error": message})
}

// respondError maps domain errors onto HTTP statuses and stable error codes.
func respondError(w http.ResponseWriter, err error) {
	var priceErr *domain.PriceMismatchError
	if errors.As(err, &priceErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":             codePriceMismatch,
			"error":            "booking price is out of date",
			"stored_total":     priceErr.StoredTotal,
			"calculated_total": priceErr.CalculatedTotal,
			"percentage_diff":  priceErr.PercentageDiff,
		})
		return
	}

	var rateErr *domain.RateLimitedError
	if errors.As(err, &rateErr) {
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many checkout attempts")
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, domain.ErrExpiredToken):
		writeError(w, http.StatusGone, codeTokenExpired, "verification link has expired")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusForbidden, codeUnauthorized, "access denied")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, http.StatusConflict, codeConflict, "booking was modified concurrently, retry")
	case errors.Is(err, domain.ErrDuplicateRef):
		writeError(w, http.StatusConflict, codeConflict, "short reference already exists")
	case errors.Is(err, domain.ErrExternalService):
		writeError(w, http.StatusBadGateway, codeExternal, "payment provider unavailable")
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusForbidden, codeUnauthorized, "invalid signature")
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

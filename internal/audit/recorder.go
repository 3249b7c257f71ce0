package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stayflow/internal/domain"
	"stayflow/internal/logging"
	"stayflow/internal/models"

	"github.com/rs/zerolog"
)

// sensitiveKeys is the redaction deny-list. A snapshot key containing any of
// these substrings is dropped before the entry is written, never stored.
var sensitiveKeys = []string{"password", "token", "secret", "hash", "api_key"}

// Recorder captures before/after snapshots of mutated entities.
type Recorder struct {
	store  domain.Store
	logger zerolog.Logger
}

func New(store domain.Store, logger *zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logging.Component(logger, "audit")}
}

// Record validates the context and appends one immutable entry.
// Validation order: action, entity type, entity id, then the value-capture
// rule keyed by action.
func (r *Recorder) Record(ctx context.Context, action, entityType, entityID string, actorID *int64, oldValues, newValues map[string]string) error {
	if strings.TrimSpace(action) == "" {
		return fmt.Errorf("audit action is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(entityType) == "" {
		return fmt.Errorf("audit entity type is required: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(entityID) == "" {
		return fmt.Errorf("audit entity id is required: %w", domain.ErrValidation)
	}

	switch action {
	case models.ActionCreate:
		if len(newValues) == 0 {
			return fmt.Errorf("audit CREATE requires new values: %w", domain.ErrValidation)
		}
	case models.ActionDelete:
		if len(oldValues) == 0 {
			return fmt.Errorf("audit DELETE requires old values: %w", domain.ErrValidation)
		}
	case models.ActionUpdate:
		if len(oldValues) == 0 {
			return fmt.Errorf("audit UPDATE requires old values: %w", domain.ErrValidation)
		}
		if len(newValues) == 0 {
			return fmt.Errorf("audit UPDATE requires new values: %w", domain.ErrValidation)
		}
	default:
		// Domain actions (APPROVE, CANCEL, EXPIRE, …) carry no value requirement.
	}

	entry := &models.AuditLogEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		OldValues:  Redact(oldValues),
		NewValues:  Redact(newValues),
	}

	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		r.logger.Error().Err(err).Str("action", action).Str("entity_id", entityID).Msg("append audit entry")
		return err
	}
	return nil
}

// Redact drops sensitive keys from a snapshot. Returns a copy.
func Redact(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if isSensitive(k) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Diff narrows old/new snapshots to the keys whose values actually differ.
// A key absent on one side with an empty value on the other counts as equal.
// Identical snapshots yield two empty maps.
func Diff(oldVals, newVals map[string]string) (map[string]string, map[string]string) {
	changedOld := make(map[string]string)
	changedNew := make(map[string]string)

	for k, ov := range oldVals {
		nv, ok := newVals[k]
		if !ok {
			nv = ""
		}
		if ov != nv {
			changedOld[k] = ov
			changedNew[k] = nv
		}
	}
	for k, nv := range newVals {
		if _, seen := oldVals[k]; seen {
			continue
		}
		if nv != "" {
			changedOld[k] = ""
			changedNew[k] = nv
		}
	}

	if len(changedOld) == 0 {
		return nil, nil
	}
	return changedOld, changedNew
}

// Snapshot flattens a booking into an audit value map. Temporal fields are
// normalized to RFC3339 text.
func Snapshot(b *models.Booking) map[string]string {
	if b == nil {
		return nil
	}
	values := map[string]string{
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"total_amount":   fmt.Sprintf("%d", b.TotalAmount),
		"amount_paid":    fmt.Sprintf("%d", b.AmountPaid),
		"amount_due":     fmt.Sprintf("%d", b.AmountDue),
		"guest_email":    b.GuestEmail,
		"short_ref":      b.ShortRef,
	}
	if !b.CreatedAt.IsZero() {
		values["created_at"] = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	return values
}

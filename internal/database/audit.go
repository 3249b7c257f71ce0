package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"stayflow/internal/models"
)

// AppendAuditEntry writes one immutable audit row. There is no update or
// delete path for audit_log anywhere in the application.
func (s *Store) AppendAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error {
	oldJSON, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("failed to marshal old values: %w", err)
	}
	newJSON, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new values: %w", err)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, entity_type, entity_id, actor_id, old_values, new_values, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Action, entry.EntityType, entry.EntityID, entry.ActorID, oldJSON, newJSON, now,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, entityType string, limit int) ([]*models.AuditLogEntry, error) {
	query := `SELECT id, action, entity_type, entity_id, actor_id, old_values, new_values, created_at
              FROM audit_log WHERE entity_type = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		e := &models.AuditLogEntry{}
		var actorID sql.NullInt64
		var oldJSON, newJSON sql.NullString
		err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &actorID, &oldJSON, &newJSON, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if actorID.Valid {
			e.ActorID = &actorID.Int64
		}
		if e.OldValues, err = unmarshalValues(oldJSON.String); err != nil {
			return nil, fmt.Errorf("failed to unmarshal old values: %w", err)
		}
		if e.NewValues, err = unmarshalValues(newJSON.String); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new values: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountAuditEntries returns how many entries exist for one entity. Used by
// tests and the exports endpoint.
func (s *Store) CountAuditEntries(ctx context.Context, entityType, entityID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

func marshalValues(values map[string]string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func unmarshalValues(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

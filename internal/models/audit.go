package models

import "time"

// AuditLogEntry is an immutable record of a mutation. Entries are appended
// once and never updated or deleted by the application.
type AuditLogEntry struct {
	ID         int64             `json:"id"`
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	ActorID    *int64            `json:"actor_id,omitempty"` // nil for system actions
	OldValues  map[string]string `json:"old_values,omitempty"`
	NewValues  map[string]string `json:"new_values,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

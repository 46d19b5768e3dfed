package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const CurrentEventSchemaVersion = 1

// EventEnvelope is the published form of an audit entry.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	EntityType    string          `json:"entity_type"`
	EntityKey     string          `json:"entity_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Actor         string          `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
}

// AuditEventType names the feed event for an audit entry, e.g. "user.updated".
func AuditEventType(entityType string, action AuditAction) string {
	verb := "changed"
	switch action {
	case AuditCreate:
		verb = "created"
	case AuditUpdate:
		verb = "updated"
	case AuditDelete:
		verb = "deleted"
	}
	return strings.ToLower(entityType) + "." + verb
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}

package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditEntry is an immutable record of one entity change. Value maps and the
// changed-field list are JSON documents; nil means SQL NULL.
type AuditEntry struct {
	ID            string
	EntityType    string
	EntityKey     string
	Action        AuditAction
	OldValues     json.RawMessage
	NewValues     json.RawMessage
	ChangedFields json.RawMessage
	CreatedAt     time.Time
	CreatedBy     string
	ClientIP      string
	ClientAgent   string
}

// Changed decodes the changed-field list.
func (e AuditEntry) Changed() []string {
	if len(e.ChangedFields) == 0 {
		return nil
	}
	var fields []string
	if err := json.Unmarshal(e.ChangedFields, &fields); err != nil {
		return nil
	}
	return fields
}

func (e AuditEntry) Describe() string {
	entity := strings.ToLower(e.EntityType)
	switch e.Action {
	case AuditCreate:
		return "Created " + entity
	case AuditUpdate:
		return "Updated " + entity
	case AuditDelete:
		return "Deleted " + entity
	default:
		return string(e.Action) + " " + entity
	}
}

// IsSoftDelete reports whether an UPDATE entry flipped the deletion marker.
func (e AuditEntry) IsSoftDelete() bool {
	if e.Action != AuditUpdate {
		return false
	}
	for _, f := range e.Changed() {
		if f == "IsDeleted" {
			return true
		}
	}
	return false
}

type AuditQuery struct {
	EntityType string
	EntityKey  string
	Actor      string
	From       *time.Time
	To         *time.Time
	Ascending  bool
	Limit      int
	Offset     int
}

// AuditActivity is an audit entry prepared for display.
type AuditActivity struct {
	AuditEntry
	Description string
	Client      string
}

type AuditSummary struct {
	From          *time.Time
	To            *time.Time
	TotalActions  int
	UserCreations int
	UserUpdates   int
	UserDeletions int
	LoginAttempts int
	ActionsByType map[string]int
	ActionsByUser map[string]int
}

package changeset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/google/uuid"
)

var ErrUnresolvedKey = errors.New("entity key still unassigned after write")

// Synthesizer builds audit entries from change records. Added records whose
// key is assigned by the store wait in a queue until after the business write.
type Synthesizer struct {
	newID   func() string
	pending map[string]ChangeRecord
	order   []string
}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		newID:   uuid.NewString,
		pending: make(map[string]ChangeRecord),
	}
}

// Prepare synthesizes every record whose key is known and defers the rest.
func (s *Synthesizer) Prepare(records []ChangeRecord, at time.Time) ([]domain.AuditEntry, error) {
	entries := make([]domain.AuditEntry, 0, len(records))
	for _, rec := range records {
		if !rec.HasChanges() {
			continue
		}
		if len(rec.Pending) > 0 {
			s.enqueue(rec)
			continue
		}
		entry, err := s.synthesize(rec, at)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Synthesizer) enqueue(rec ChangeRecord) string {
	id := s.newID()
	s.pending[id] = rec
	s.order = append(s.order, id)
	return id
}

// Pending is the number of records waiting for store-assigned values.
func (s *Synthesizer) Pending() int {
	return len(s.pending)
}

// Resolve reads back store-assigned values of deferred records and
// synthesizes their entries. The queue is empty afterwards.
func (s *Synthesizer) Resolve(at time.Time) ([]domain.AuditEntry, error) {
	defer func() {
		s.pending = make(map[string]ChangeRecord)
		s.order = nil
	}()

	entries := make([]domain.AuditEntry, 0, len(s.order))
	for _, id := range s.order {
		rec := s.pending[id]
		current, err := rec.desc.values(rec.Entity)
		if err != nil {
			return nil, err
		}
		for i, f := range rec.desc.fields {
			if !f.storeGenerated || !slices.Contains(rec.Pending, f.name) {
				continue
			}
			v := current[i]
			if isZeroValue(v) {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnresolvedKey, rec.EntityType, f.name)
			}
			if f.key {
				rec.Keys[f.name] = v
			} else {
				rec.NewValues[f.name] = recorded(f, v)
			}
		}
		rec.Pending = nil
		entry, err := s.synthesize(rec, at)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Synthesizer) synthesize(rec ChangeRecord, at time.Time) (domain.AuditEntry, error) {
	if len(rec.Keys) == 0 {
		return domain.AuditEntry{}, fmt.Errorf("%w: %s has no key", ErrUnresolvedKey, rec.EntityType)
	}
	for name, v := range rec.Keys {
		if isZeroValue(v) {
			return domain.AuditEntry{}, fmt.Errorf("%w: %s.%s", ErrUnresolvedKey, rec.EntityType, name)
		}
	}

	key, err := encodeValues(rec.Keys)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("encode %s key: %w", rec.EntityType, err)
	}
	entry := domain.AuditEntry{
		ID:          s.newID(),
		EntityType:  rec.EntityType,
		EntityKey:   string(key),
		CreatedAt:   at.UTC(),
		CreatedBy:   rec.Actor.Name(),
		ClientIP:    rec.Actor.IP,
		ClientAgent: rec.Actor.Agent,
	}

	switch rec.State {
	case Added:
		entry.Action = domain.AuditCreate
	case Modified:
		entry.Action = domain.AuditUpdate
	case Removed:
		entry.Action = domain.AuditDelete
	default:
		return domain.AuditEntry{}, fmt.Errorf("synthesize %s: unexpected state %s", rec.EntityType, rec.State)
	}

	if entry.OldValues, err = encodeOptional(rec.OldValues); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("encode %s old values: %w", rec.EntityType, err)
	}
	if entry.NewValues, err = encodeOptional(rec.NewValues); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("encode %s new values: %w", rec.EntityType, err)
	}
	if len(rec.Changed) > 0 {
		if entry.ChangedFields, err = json.Marshal(rec.Changed); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("encode %s changed fields: %w", rec.EntityType, err)
		}
	}
	return entry, nil
}

func encodeOptional(values map[string]any) (json.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return encodeValues(values)
}

// encodeValues writes a key-sorted JSON object with times in UTC.
func encodeValues(values map[string]any) (json.RawMessage, error) {
	normalized := make(map[string]any, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case time.Time:
			normalized[k] = t.UTC()
		case *time.Time:
			if t == nil {
				normalized[k] = nil
			} else {
				normalized[k] = t.UTC()
			}
		default:
			normalized[k] = v
		}
	}
	return json.Marshal(normalized)
}

// DecodeValues is the inverse of the value encoding used in audit entries.
func DecodeValues(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

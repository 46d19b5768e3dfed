package changeset

import (
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

type State int

const (
	Unchanged State = iota
	Added
	Modified
	Removed
	Detached
)

func (s State) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Entry is one staged entity with the field values captured when it was
// attached. A nil original means the entity was never loaded.
type Entry struct {
	Entity   Entity
	State    State
	original []any
	desc     *descriptor
}

// ChangeRecord is the classified change of one entity within a batch.
type ChangeRecord struct {
	Entity     Entity
	EntityType string
	State      State
	Keys       map[string]any
	OldValues  map[string]any
	NewValues  map[string]any
	Changed    []string
	// Pending lists store-generated fields that still hold their zero value.
	Pending []string
	Actor   domain.Actor

	desc *descriptor
}

// HasChanges reports whether the record must reach the store.
func (r ChangeRecord) HasChanges() bool {
	return r.State != Modified || len(r.Changed) > 0
}

// Tracker classifies staged entries into change records.
type Tracker struct{}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Track returns one record per entry that is neither Unchanged nor Detached.
func (t *Tracker) Track(entries []*Entry, actor domain.Actor) ([]ChangeRecord, error) {
	records := make([]ChangeRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.State == Unchanged || entry.State == Detached {
			continue
		}
		current, err := entry.desc.values(entry.Entity)
		if err != nil {
			return nil, err
		}
		records = append(records, t.classify(entry, current, actor))
	}
	return records, nil
}

func (t *Tracker) classify(entry *Entry, current []any, actor domain.Actor) ChangeRecord {
	d := entry.desc
	rec := ChangeRecord{
		Entity:     entry.Entity,
		EntityType: d.name,
		State:      entry.State,
		Keys:       make(map[string]any),
		Actor:      actor,
		desc:       d,
	}

	switch entry.State {
	case Added:
		rec.NewValues = make(map[string]any)
	case Removed:
		rec.OldValues = make(map[string]any)
	case Modified:
		rec.OldValues = make(map[string]any)
		rec.NewValues = make(map[string]any)
	}

	for i, f := range d.fields {
		cur := current[i]
		if f.storeGenerated && entry.State == Added && isZeroValue(cur) {
			rec.Pending = append(rec.Pending, f.name)
			continue
		}
		if f.key {
			rec.Keys[f.name] = cur
			continue
		}

		switch entry.State {
		case Added:
			rec.NewValues[f.name] = recorded(f, cur)
		case Removed:
			old := cur
			if entry.original != nil {
				old = entry.original[i]
			}
			rec.OldValues[f.name] = recorded(f, old)
		case Modified:
			if entry.original == nil {
				rec.Changed = append(rec.Changed, f.name)
				rec.NewValues[f.name] = recorded(f, cur)
				continue
			}
			old := entry.original[i]
			if f.equal(old, cur) {
				continue
			}
			rec.Changed = append(rec.Changed, f.name)
			rec.OldValues[f.name] = recorded(f, old)
			rec.NewValues[f.name] = recorded(f, cur)
		}
	}
	return rec
}

const sensitiveMask = "***"

func recorded(f fieldSpec, v any) any {
	if f.sensitive && !isZeroValue(v) {
		return sensitiveMask
	}
	return v
}

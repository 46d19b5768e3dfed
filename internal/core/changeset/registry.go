package changeset

import (
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
)

var (
	ErrUnregisteredEntity = errors.New("entity type is not registered")
	ErrInvalidDescriptor  = errors.New("invalid entity descriptor")
)

// Entity is anything the gateway can persist. Entities are staged by pointer.
type Entity interface {
	EntityName() string
}

// Field describes one persisted field of T.
type Field[T any] struct {
	Name string
	// Key fields form the entity identifier and are never diffed.
	Key bool
	// StoreGenerated fields are assigned by the store on insert when they
	// still hold their zero value.
	StoreGenerated bool
	// Sensitive values are diffed but recorded as a mask.
	Sensitive bool
	Get       func(*T) any
	Equal     func(a, b any) bool
}

// Type is the descriptor table for one entity type.
type Type[T any] struct {
	Name   string
	Fields []Field[T]
	// SoftDelete returns the deletion marker of soft-deletable types. Types
	// without it are removed from the store.
	SoftDelete func(*T) *domain.SoftDelete
	Stamp      func(*T) *domain.AuditStamp
}

type fieldSpec struct {
	name           string
	key            bool
	storeGenerated bool
	sensitive      bool
	equal          func(a, b any) bool
}

type descriptor struct {
	name       string
	fields     []fieldSpec
	read       func(Entity) ([]any, bool)
	softDelete func(Entity) *domain.SoftDelete
	stamp      func(Entity) *domain.AuditStamp
}

func (d *descriptor) values(e Entity) ([]any, error) {
	vals, ok := d.read(e)
	if !ok {
		return nil, fmt.Errorf("%w: %s staged as %T", ErrUnregisteredEntity, d.name, e)
	}
	return vals, nil
}

// Registry maps entity type names to descriptors.
type Registry struct {
	types map[string]*descriptor
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*descriptor)}
}

// Register adds the descriptor for T. Entities of the type must be staged as *T.
func Register[T any](r *Registry, t Type[T]) error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty type name", ErrInvalidDescriptor)
	}
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidDescriptor, t.Name)
	}

	d := &descriptor{name: t.Name, fields: make([]fieldSpec, 0, len(t.Fields))}
	seen := make(map[string]bool, len(t.Fields))
	hasKey := false
	for _, f := range t.Fields {
		if f.Name == "" || f.Get == nil {
			return fmt.Errorf("%w: %s has a field without name or getter", ErrInvalidDescriptor, t.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s.%s declared twice", ErrInvalidDescriptor, t.Name, f.Name)
		}
		seen[f.Name] = true
		hasKey = hasKey || f.Key
		eq := f.Equal
		if eq == nil {
			eq = valuesEqual
		}
		d.fields = append(d.fields, fieldSpec{
			name:           f.Name,
			key:            f.Key,
			storeGenerated: f.StoreGenerated,
			sensitive:      f.Sensitive,
			equal:          eq,
		})
	}
	if !hasKey {
		return fmt.Errorf("%w: %s has no key field", ErrInvalidDescriptor, t.Name)
	}

	fields := t.Fields
	d.read = func(e Entity) ([]any, bool) {
		v, ok := any(e).(*T)
		if !ok || v == nil {
			return nil, false
		}
		out := make([]any, len(fields))
		for i, f := range fields {
			out[i] = f.Get(v)
		}
		return out, true
	}
	if t.SoftDelete != nil {
		sd := t.SoftDelete
		d.softDelete = func(e Entity) *domain.SoftDelete {
			v, ok := any(e).(*T)
			if !ok {
				return nil
			}
			return sd(v)
		}
	}
	if t.Stamp != nil {
		st := t.Stamp
		d.stamp = func(e Entity) *domain.AuditStamp {
			v, ok := any(e).(*T)
			if !ok {
				return nil
			}
			return st(v)
		}
	}

	r.types[t.Name] = d
	return nil
}

// MustRegister is Register for static registration at startup.
func MustRegister[T any](r *Registry, t Type[T]) {
	if err := Register(r, t); err != nil {
		panic(err)
	}
}

func (r *Registry) lookup(e Entity) (*descriptor, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrUnregisteredEntity)
	}
	d, ok := r.types[e.EntityName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredEntity, e.EntityName())
	}
	return d, nil
}

// SoftDeletable reports whether the named type carries the soft-delete capability.
func (r *Registry) SoftDeletable(name string) bool {
	d, ok := r.types[name]
	return ok && d.softDelete != nil
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case *time.Time:
		bv, ok := b.(*time.Time)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return av.Equal(*bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && string(av) == string(bv)
	default:
		return a == b
	}
}

func isZeroValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case int:
		return x == 0
	case int64:
		return x == 0
	case int32:
		return x == 0
	case uint64:
		return x == 0
	case string:
		return x == ""
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil
	default:
		return false
	}
}

package changeset

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsInvalidDescriptors(t *testing.T) {
	r := NewRegistry()

	err := Register(r, Type[membership]{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	err = Register(r, Type[membership]{
		Name:   "Membership",
		Fields: []Field[membership]{{Name: "Note", Get: func(m *membership) any { return m.Note }}},
	})
	assert.ErrorIs(t, err, ErrInvalidDescriptor, "a type without key fields is rejected")

	err = Register(r, Type[membership]{
		Name: "Membership",
		Fields: []Field[membership]{
			{Name: "AccountID", Key: true, Get: func(m *membership) any { return m.AccountID }},
			{Name: "AccountID", Get: func(m *membership) any { return m.AccountID }},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	valid := Type[membership]{
		Name:   "Membership",
		Fields: []Field[membership]{{Name: "AccountID", Key: true, Get: func(m *membership) any { return m.AccountID }}},
	}
	require.NoError(t, Register(r, valid))
	assert.ErrorIs(t, Register(r, valid), ErrInvalidDescriptor)
	assert.False(t, r.SoftDeletable("Membership"))
}

func TestSoftDeleteCapabilityIsPerType(t *testing.T) {
	r := testRegistry(t)
	assert.True(t, r.SoftDeletable("Account"))
	assert.False(t, r.SoftDeletable("Ticket"))
	assert.False(t, r.SoftDeletable("Membership"))
	assert.False(t, r.SoftDeletable("Unknown"))
}

func TestDescriptorReadsOnlyPointersToItsType(t *testing.T) {
	r := testRegistry(t)
	d := r.types["Account"]
	require.NotNil(t, d)

	acc := &account{ID: "a-1", Email: "a@example.com"}
	vals, err := d.values(acc)
	require.NoError(t, err)
	assert.Equal(t, "a-1", vals[0])
	assert.Equal(t, "a@example.com", vals[1])
	assert.Same(t, &acc.SoftDelete, d.softDelete(acc))
	assert.Same(t, &acc.AuditStamp, d.stamp(acc))

	_, err = d.values(account{ID: "a-1"})
	assert.ErrorIs(t, err, ErrUnregisteredEntity, "values are staged by pointer")
	_, err = d.values(&ticket{ID: 1})
	assert.ErrorIs(t, err, ErrUnregisteredEntity)
	_, err = d.values((*account)(nil))
	assert.ErrorIs(t, err, ErrUnregisteredEntity)
	assert.Nil(t, d.softDelete(&ticket{}))
	assert.Nil(t, d.stamp(&membership{}))
}

func TestValuesEqual(t *testing.T) {
	a := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := a.In(time.FixedZone("CET", 3600))

	assert.True(t, valuesEqual(a, b))
	assert.True(t, valuesEqual(&a, &b))
	assert.True(t, valuesEqual((*time.Time)(nil), (*time.Time)(nil)))
	assert.False(t, valuesEqual(&a, (*time.Time)(nil)))
	assert.True(t, valuesEqual("x", "x"))
	assert.False(t, valuesEqual(int64(1), int64(2)))
	assert.False(t, valuesEqual(int64(1), 1))
}

func TestEncodedValuesRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.FixedZone("EEST", 3*3600))
	raw, err := encodeValues(map[string]any{
		"Name":      "Jane",
		"Active":    true,
		"Count":     int64(3),
		"DeletedAt": &at,
		"Missing":   (*time.Time)(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"Active":true,"Count":3,"DeletedAt":"2025-06-01T05:30:00Z","Missing":null,"Name":"Jane"}`, string(raw))

	decoded, err := DecodeValues(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"Active":    true,
		"Count":     json.Number("3"),
		"DeletedAt": "2025-06-01T05:30:00Z",
		"Missing":   nil,
		"Name":      "Jane",
	}, decoded)
}

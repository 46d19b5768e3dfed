package domain

import "time"

// SoftDelete marks an entity as deleted without removing its row.
type SoftDelete struct {
	IsDeleted bool
	DeletedAt *time.Time
	DeletedBy string
}

func (s *SoftDelete) MarkDeleted(at time.Time, by string) {
	at = at.UTC()
	s.IsDeleted = true
	s.DeletedAt = &at
	s.DeletedBy = by
}

// AuditStamp carries creation and last-update bookkeeping.
type AuditStamp struct {
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt *time.Time
	UpdatedBy string
}

func (s *AuditStamp) StampCreated(at time.Time, by string) {
	s.CreatedAt = at.UTC()
	s.CreatedBy = by
}

func (s *AuditStamp) StampUpdated(at time.Time, by string) {
	at = at.UTC()
	s.UpdatedAt = &at
	s.UpdatedBy = by
}

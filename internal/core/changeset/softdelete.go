package changeset

import "time"

// SoftDeleteInterceptor turns removals of soft-deletable entities into
// updates of their deletion marker.
type SoftDeleteInterceptor struct{}

// Apply rewrites entries in place and returns how many were converted.
func (SoftDeleteInterceptor) Apply(entries []*Entry, at time.Time, actor string) int {
	converted := 0
	for _, entry := range entries {
		if entry.State != Removed || entry.desc.softDelete == nil {
			continue
		}
		marker := entry.desc.softDelete(entry.Entity)
		if marker == nil {
			continue
		}
		marker.MarkDeleted(at, actor)
		entry.State = Modified
		converted++
	}
	return converted
}

package skeleton

// PersonFilter is a set of person IDs to keep.
//
// A nil filter keeps everyone; a non-nil empty filter keeps nobody.
type PersonFilter map[uint32]struct{}

// NewPersonFilter creates a filter for the given person IDs.
//
// With no IDs, this returns nil (no filtering).
func NewPersonFilter(personIDs ...uint32) PersonFilter {
	if len(personIDs) == 0 {
		return nil
	}
	filter := make(PersonFilter, len(personIDs))
	for _, personID := range personIDs {
		filter[personID] = struct{}{}
	}
	return filter
}

// Allows returns true if the given person should be kept.
func (f PersonFilter) Allows(personID uint32) bool {
	if f == nil {
		return true
	}
	_, okay := f[personID]
	return okay
}

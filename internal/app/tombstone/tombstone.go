// Package tombstone remembers a bounded number of removed ids.
package tombstone

// DefaultLimit is the number of ids kept when no limit is given.
const DefaultLimit = 4096

// Set holds up to limit ids with the version they were removed at.
// The oldest id is forgotten first. A Set is not safe for concurrent use.
type Set struct {
	limit    int
	versions map[string]uint64
	order    []string
}

// New creates a set keeping at most limit ids.
func New(limit int) *Set {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Set{limit: limit, versions: make(map[string]uint64)}
}

// Add records id, evicting the oldest ids beyond the limit.
func (s *Set) Add(id string, version uint64) {
	if _, ok := s.versions[id]; !ok {
		s.order = append(s.order, id)
	}
	s.versions[id] = version
	for len(s.order) > s.limit {
		delete(s.versions, s.order[0])
		s.order[0] = ""
		s.order = s.order[1:]
	}
}

// Get returns the version id was removed at.
func (s *Set) Get(id string) (uint64, bool) {
	v, ok := s.versions[id]
	return v, ok
}

// Contains reports whether id is remembered.
func (s *Set) Contains(id string) bool {
	_, ok := s.versions[id]
	return ok
}

// Len returns the number of remembered ids.
func (s *Set) Len() int {
	return len(s.order)
}

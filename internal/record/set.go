package record

import "slices"

// Set is an ordered collection of records without duplicate IDs.
// Iteration order is Compare order. The zero value is an empty set.
type Set struct {
	records []Record
	ids     map[string]struct{}
}

// NewSet builds a set from records, dropping repeated IDs.
func NewSet(records ...Record) *Set {
	s := &Set{}
	for _, r := range records {
		s.Insert(r)
	}
	return s
}

// Insert adds r unless a record with the same ID is present.
// It reports whether r was added.
func (s *Set) Insert(r Record) bool {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	if _, ok := s.ids[r.ID]; ok {
		return false
	}
	s.ids[r.ID] = struct{}{}
	i, _ := slices.BinarySearchFunc(s.records, r, Compare)
	s.records = slices.Insert(s.records, i, r)
	return true
}

// Union inserts every record of other into s.
func (s *Set) Union(other *Set) {
	if other == nil {
		return
	}
	for _, r := range other.records {
		s.Insert(r)
	}
}

// Contains reports whether a record with the given ID is present.
func (s *Set) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of records.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the records in order.
func (s *Set) Records() []Record {
	if s == nil {
		return []Record{}
	}
	return slices.Clone(s.records)
}

// IDs returns the record IDs in order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, s.Len())
	for _, r := range s.Records() {
		ids = append(ids, r.ID)
	}
	return ids
}

// Contents returns the record contents in order.
func (s *Set) Contents() []string {
	out := make([]string, 0, s.Len())
	for _, r := range s.Records() {
		out = append(out, r.Content)
	}
	return out
}

// Last returns the newest record and false if the set is empty.
func (s *Set) Last() (Record, bool) {
	if s.Len() == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}

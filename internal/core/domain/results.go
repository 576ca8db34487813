package domain

import (
	"cmp"
	"errors"
	"slices"
)

// MaxResults caps every recommendation list returned to callers.
const MaxResults = 15

var ErrDuplicateMedia = errors.New("domain: duplicate media id")

// ResultSet is an ordered collection of media records with unique IDs.
type ResultSet struct {
	Records []MediaRecord
	seen    map[int]struct{}
}

// NewResultSet seeds a result set, keeping the first occurrence of every ID.
func NewResultSet(records ...MediaRecord) *ResultSet {
	s := &ResultSet{Records: make([]MediaRecord, 0, len(records)), seen: make(map[int]struct{}, len(records))}
	for _, r := range records {
		_ = s.Add(r)
	}
	return s
}

// Add appends a record unless one with the same ID is already present,
// in which case it returns ErrDuplicateMedia.
func (s *ResultSet) Add(m MediaRecord) error {
	if s.seen == nil {
		s.seen = make(map[int]struct{}, len(s.Records))
		for _, r := range s.Records {
			s.seen[r.ID] = struct{}{}
		}
	}
	if _, ok := s.seen[m.ID]; ok {
		return ErrDuplicateMedia
	}
	s.seen[m.ID] = struct{}{}
	s.Records = append(s.Records, m)
	return nil
}

// Ranked returns the records ordered by average score descending (missing
// scores count as 0), ties broken by ascending ID, truncated to limit.
func (s *ResultSet) Ranked(limit int) []MediaRecord {
	out := slices.Clone(s.Records)
	slices.SortStableFunc(out, func(a, b MediaRecord) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

package entity

import (
	"cmp"
	"slices"
)

// Tag is a candidate mention over the half-open byte span [Start, End).
type Tag struct {
	Start int
	End   int
	// Anchor is the literal text of the span, set by scoring.
	Anchor string
	// Suggestions are the surviving matches ordered by score.
	Suggestions []*Match
	// Score is the score of the best suggestion.
	Score float64

	matches []*Match
	ids     map[uint32]struct{}
}

// NewTag creates an empty tag.
func NewTag(start, end int) *Tag {
	return &Tag{Start: start, End: end, ids: make(map[uint32]struct{})}
}

// AddMatch attaches m unless a match for the same document is present.
func (t *Tag) AddMatch(m *Match) bool {
	if _, dup := t.ids[m.DocID]; dup {
		return false
	}
	t.ids[m.DocID] = struct{}{}
	t.matches = append(t.matches, m)
	return true
}

// Matches returns the raw matches in insertion order.
func (t *Tag) Matches() []*Match { return t.matches }

// Compare orders tags by start ascending, then end descending so that the
// longest tag starting at an offset sorts first.
func Compare(a, b *Tag) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(b.End, a.End)
}

type span struct{ start, end int }

// TagSet holds at most one tag per span.
type TagSet struct {
	tags map[span]*Tag
}

// NewTagSet creates an empty set.
func NewTagSet() *TagSet {
	return &TagSet{tags: make(map[span]*Tag)}
}

// Get returns the tag at [start, end).
func (s *TagSet) Get(start, end int) (*Tag, bool) {
	t, ok := s.tags[span{start, end}]
	return t, ok
}

// GetOrCreate returns the tag at [start, end), creating it when missing.
func (s *TagSet) GetOrCreate(start, end int) *Tag {
	key := span{start, end}
	if t, ok := s.tags[key]; ok {
		return t
	}
	t := NewTag(start, end)
	s.tags[key] = t
	return t
}

// Remove deletes the tag at the span of t.
func (s *TagSet) Remove(t *Tag) {
	delete(s.tags, span{t.Start, t.End})
}

// Len returns the number of tags.
func (s *TagSet) Len() int { return len(s.tags) }

// Sorted returns the tags in span order.
func (s *TagSet) Sorted() []*Tag {
	out := make([]*Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, Compare)
	return out
}

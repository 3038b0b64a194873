package tagger

import (
	"github.com/cognicore/fstlink/pkg/fstlink/classify"
	"github.com/cognicore/fstlink/pkg/fstlink/nlp"
)

// Candidate is a span matched by the automaton and the postings ordinal of
// the matched key.
type Candidate struct {
	Start   int
	End     int
	Ordinal uint64
}

func (c Candidate) span() nlp.Span { return nlp.Span{Start: c.Start, End: c.End} }

// Cluster is a maximal group of overlapping candidates in span order.
type Cluster struct {
	Tags []Candidate
}

// Start returns the start offset of the first candidate.
func (c *Cluster) Start() int {
	if len(c.Tags) == 0 {
		return -1
	}
	return c.Tags[0].Start
}

func (c *Cluster) keep(fn func(Candidate) bool) {
	kept := make([]Candidate, 0, len(c.Tags))
	for _, t := range c.Tags {
		if fn(t) {
			kept = append(kept, t)
		}
	}
	c.Tags = kept
}

// Reducer removes candidates from a cluster.
type Reducer interface {
	Reduce(c *Cluster)
}

// ReducerFunc adapts a function to Reducer.
type ReducerFunc func(c *Cluster)

// Reduce implements Reducer.
func (f ReducerFunc) Reduce(c *Cluster) { f(c) }

// All keeps every candidate.
var All Reducer = ReducerFunc(func(*Cluster) {})

// Chain applies reducers in order and stops once the cluster is empty.
func Chain(reducers ...Reducer) Reducer {
	return ReducerFunc(func(c *Cluster) {
		for _, r := range reducers {
			if len(c.Tags) == 0 {
				return
			}
			r.Reduce(c)
		}
	})
}

// SpanFilter drops candidates not overlapping any span of a queue. Spans
// ending at or before the start of a cluster are evicted first.
type SpanFilter struct {
	queue *classify.SpanQueue
}

// LinkableFilter keeps candidates overlapping a linkable token.
func LinkableFilter(q *classify.SpanQueue) *SpanFilter {
	return &SpanFilter{queue: q}
}

// NamedEntityFilter keeps candidates overlapping a named entity chunk.
func NamedEntityFilter(chunks []nlp.Chunk) *SpanFilter {
	q := classify.NewSpanQueue()
	for _, c := range chunks {
		q.Push(c.Span)
	}
	return &SpanFilter{queue: q}
}

// Reduce implements Reducer.
func (f *SpanFilter) Reduce(c *Cluster) {
	if len(c.Tags) == 0 {
		return
	}
	f.queue.EvictUpTo(c.Start())
	c.keep(func(t Candidate) bool {
		_, ok := f.queue.Overlapping(t.span())
		return ok
	})
}

// LongestDominantRight keeps the longest candidate, removes everything
// overlapping it and repeats with the rest. Among equally long candidates
// the rightmost wins.
var LongestDominantRight Reducer = ReducerFunc(longestDominantRight)

func longestDominantRight(c *Cluster) {
	tags := c.Tags
	if len(tags) < 2 {
		return
	}
	removed := make([]bool, len(tags))
	marked := make([]bool, len(tags))
	for {
		longest := -1
		for i, t := range tags {
			if removed[i] || marked[i] {
				continue
			}
			if longest < 0 || t.End-t.Start >= tags[longest].End-tags[longest].Start {
				longest = i
			}
		}
		if longest < 0 {
			break
		}
		marked[longest] = true
		l := tags[longest]
		for i, t := range tags {
			if removed[i] || marked[i] {
				continue
			}
			var overlaps bool
			if t.Start < l.Start {
				overlaps = t.End > l.Start
			} else {
				overlaps = t.Start < l.End
			}
			if overlaps {
				removed[i] = true
			} else if t.Start >= l.End {
				break
			}
		}
	}
	i := 0
	c.keep(func(Candidate) bool {
		keep := !removed[i]
		i++
		return keep
	})
}

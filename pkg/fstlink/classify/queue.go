package classify

import "github.com/cognicore/fstlink/pkg/fstlink/nlp"

// SpanQueue is a FIFO of non-overlapping spans in text order.
type SpanQueue struct {
	spans []nlp.Span
	head  int
}

// NewSpanQueue creates a queue holding spans, which must be sorted and
// must not overlap.
func NewSpanQueue(spans ...nlp.Span) *SpanQueue {
	return &SpanQueue{spans: append([]nlp.Span(nil), spans...)}
}

// Push appends a span.
func (q *SpanQueue) Push(s nlp.Span) {
	q.spans = append(q.spans, s)
}

// Len returns the number of spans not yet evicted.
func (q *SpanQueue) Len() int { return len(q.spans) - q.head }

// Spans returns the spans not yet evicted.
func (q *SpanQueue) Spans() []nlp.Span {
	return append([]nlp.Span(nil), q.spans[q.head:]...)
}

// EvictUpTo drops every span ending at or before pos.
func (q *SpanQueue) EvictUpTo(pos int) {
	for q.head < len(q.spans) && q.spans[q.head].End <= pos {
		q.head++
	}
	if q.head > 64 && q.head*2 > len(q.spans) {
		q.spans = append([]nlp.Span(nil), q.spans[q.head:]...)
		q.head = 0
	}
}

// Overlapping returns the first queued span overlapping s without
// evicting anything.
func (q *SpanQueue) Overlapping(s nlp.Span) (nlp.Span, bool) {
	for i := q.head; i < len(q.spans); i++ {
		cand := q.spans[i]
		if cand.End <= s.Start {
			continue
		}
		return cand, cand.Start < s.End
	}
	return nlp.Span{}, false
}

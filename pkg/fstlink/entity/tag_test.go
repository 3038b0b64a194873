package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagOrdering(t *testing.T) {
	set := NewTagSet()
	set.GetOrCreate(10, 12)
	set.GetOrCreate(0, 5)
	set.GetOrCreate(0, 9)
	set.GetOrCreate(3, 4)

	var spans [][2]int
	for _, tag := range set.Sorted() {
		spans = append(spans, [2]int{tag.Start, tag.End})
	}
	assert.Equal(t, [][2]int{{0, 9}, {0, 5}, {3, 4}, {10, 12}}, spans)
}

func TestCompare(t *testing.T) {
	a := NewTag(0, 5)
	b := NewTag(1, 20)
	longer := NewTag(0, 8)
	assert.Negative(t, Compare(a, b), "earlier start first")
	assert.Negative(t, Compare(longer, a), "longer span first at same start")
	assert.Zero(t, Compare(a, NewTag(0, 5)))
}

func TestTagSetGetOrCreate(t *testing.T) {
	set := NewTagSet()
	t1 := set.GetOrCreate(0, 5)
	t2 := set.GetOrCreate(0, 5)
	assert.Same(t, t1, t2)
	assert.Equal(t, 1, set.Len())

	set.Remove(t1)
	_, ok := set.Get(0, 5)
	assert.False(t, ok)
}

func TestTagDeduplicatesMatchesByDocument(t *testing.T) {
	tag := NewTag(0, 5)
	assert.True(t, tag.AddMatch(NewMatch(1, nil)))
	assert.True(t, tag.AddMatch(NewMatch(2, nil)))
	assert.False(t, tag.AddMatch(NewMatch(1, nil)))
	assert.Len(t, tag.Matches(), 2)
	assert.True(t, NewMatch(7, nil).Equal(&Match{DocID: 7, Score: 0.3}))
}

type countingLoader struct {
	calls int
	err   error
}

func (l *countingLoader) LoadDocument(ctx context.Context, id uint32) (*Document, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return &Document{URI: "urn:test"}, nil
}

func TestMatchLoadsOnce(t *testing.T) {
	l := &countingLoader{}
	m := NewMatch(3, l)
	_, ok := m.Loaded()
	assert.False(t, ok)

	doc, err := m.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "urn:test", doc.URI)
	_, _ = m.Document(context.Background())
	assert.Equal(t, 1, l.calls)

	failing := &countingLoader{err: errors.New("boom")}
	m = NewMatch(4, failing)
	_, err = m.Document(context.Background())
	assert.Error(t, err)
	_, err = m.Document(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	_, ok = m.Loaded()
	assert.False(t, ok)
}

package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
	"github.com/cognicore/fstlink/pkg/fstlink/store/memstore"
)

func newIndex(t *testing.T) (*memstore.Index, uint32) {
	t.Helper()
	ix := memstore.New()
	f := store.NewFields()
	f.Strings["label"] = []string{"Paris"}
	f.Strings["type"] = []string{"dbo:City"}
	f.Numbers["rank"] = 10
	id, err := ix.Upsert(context.Background(), "urn:paris", f)
	require.NoError(t, err)
	return ix, id
}

func TestLoadMergesMissingFields(t *testing.T) {
	ix, id := newIndex(t)
	s, err := ix.Acquire(context.Background())
	require.NoError(t, err)
	defer s.Release()

	c := newCache(s.Version(), 16)
	ctx := context.Background()

	got, kind, err := c.Load(ctx, s, id, []string{"label"})
	require.NoError(t, err)
	assert.Equal(t, Loaded, kind)
	assert.Equal(t, "Paris", got.First("label"))

	got, kind, err = c.Load(ctx, s, id, []string{"label", "type", "rank"})
	require.NoError(t, err)
	assert.Equal(t, Appended, kind)
	assert.Equal(t, "dbo:City", got.First("type"))
	rank, ok := got.Number("rank")
	assert.True(t, ok)
	assert.Equal(t, 10.0, rank)

	_, kind, err = c.Load(ctx, s, id, []string{"type"})
	require.NoError(t, err)
	assert.Equal(t, Cached, kind)

	assert.EqualValues(t, 1, ix.FieldReads("label"))
	assert.EqualValues(t, 1, ix.FieldReads("type"))
	assert.EqualValues(t, 1, ix.FieldReads("rank"))
	assert.ElementsMatch(t, []string{"label", "type", "rank"}, c.entry(id).Fields())
}

func TestLoadFailureLeavesEntryUntouched(t *testing.T) {
	ix, id := newIndex(t)
	ix.FailDocument(id, errors.New("disk on fire"))
	s, err := ix.Acquire(context.Background())
	require.NoError(t, err)
	defer s.Release()

	c := newCache(s.Version(), 16)
	_, _, err = c.Load(context.Background(), s, id, []string{"label"})
	assert.ErrorIs(t, err, internalerr.ErrFieldLoadFailed)
	assert.Empty(t, c.entry(id).Fields())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ix := memstore.New()
	ctx := context.Background()
	for _, uri := range []string{"urn:a", "urn:b", "urn:c"} {
		_, err := ix.Upsert(ctx, uri, store.NewFields())
		require.NoError(t, err)
	}
	s, err := ix.Acquire(ctx)
	require.NoError(t, err)
	defer s.Release()

	c := newCache(s.Version(), 2)
	for id := uint32(0); id < 3; id++ {
		_, _, err := c.Load(ctx, s, id, []string{store.IDField})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.EqualValues(t, 1, c.Evictions())

	_, kind, err := c.Load(ctx, s, 0, []string{store.IDField})
	require.NoError(t, err)
	assert.Equal(t, Loaded, kind)
}

func TestManagerVersions(t *testing.T) {
	m := NewManager(8, nil)

	c1 := m.Acquire(1)
	assert.Same(t, c1, m.Acquire(1))
	c1.Release()
	assert.EqualValues(t, 2, c1.Refs(), "manager plus one checkout")

	c2 := m.Acquire(2)
	assert.NotSame(t, c1, c2)
	assert.Same(t, c2, m.Current())
	assert.False(t, c1.Closed(), "still checked out")
	c1.Release()
	assert.True(t, c1.Closed())

	old := m.Acquire(1)
	assert.NotSame(t, c2, old)
	assert.Same(t, c2, m.Current())
	old.Release()
	assert.True(t, old.Closed())

	c2.Release()
	assert.False(t, c2.Closed())
	m.Close()
	assert.True(t, c2.Closed())
	assert.Nil(t, m.Current())
}

func TestLoadKindString(t *testing.T) {
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "cached", Cached.String())
	assert.Equal(t, "appended", Appended.String())
}

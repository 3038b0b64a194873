// Package cache keeps the stored fields of recently matched entity
// documents for one index version.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

// LoadKind tells how the requested fields of a document were obtained.
type LoadKind int

const (
	// Loaded means nothing was cached and all fields were read.
	Loaded LoadKind = iota
	// Cached means every requested field was already cached.
	Cached
	// Appended means some fields were cached and the rest were read and
	// merged into the entry.
	Appended
)

func (k LoadKind) String() string {
	switch k {
	case Cached:
		return "cached"
	case Appended:
		return "appended"
	default:
		return "loaded"
	}
}

// DefaultSize is the entry capacity used when none is configured.
const DefaultSize = 65536

// Entry is the cached field map of one document. Writers are serialised
// per entry.
type Entry struct {
	mu     sync.Mutex
	fields store.Fields
	loaded map[string]struct{}
}

func newEntry() *Entry {
	return &Entry{fields: store.NewFields(), loaded: make(map[string]struct{})}
}

// Fields returns the names of the fields loaded so far.
func (e *Entry) Fields() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.loaded))
	for name := range e.loaded {
		names = append(names, name)
	}
	return names
}

// Cache maps document ids of one index version to their entries.
type Cache struct {
	version int64
	entries *lru.Cache[uint32, *Entry]

	refs      atomic.Int64
	evictions atomic.Uint64
	closed    atomic.Bool
}

func newCache(version int64, size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache{version: version}
	// only fails for a non-positive size
	c.entries, _ = lru.NewWithEvict[uint32, *Entry](size, c.onEvict)
	return c
}

func (c *Cache) onEvict(uint32, *Entry) {
	c.evictions.Add(1)
}

// Version returns the index version the cache belongs to.
func (c *Cache) Version() int64 { return c.version }

// Len returns the number of cached documents.
func (c *Cache) Len() int { return c.entries.Len() }

// Evictions returns how many entries were dropped for capacity.
func (c *Cache) Evictions() uint64 { return c.evictions.Load() }

// Refs returns the number of outstanding checkouts.
func (c *Cache) Refs() int64 { return c.refs.Load() }

func (c *Cache) entry(id uint32) *Entry {
	if e, ok := c.entries.Get(id); ok {
		return e
	}
	e := newEntry()
	if prev, ok, _ := c.entries.PeekOrAdd(id, e); ok {
		return prev
	}
	return e
}

// Load returns the requested fields of document id, reading only the
// fields not cached yet through s.
func (c *Cache) Load(ctx context.Context, s store.Searcher, id uint32, fields []string) (store.Fields, LoadKind, error) {
	e := c.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	var missing []string
	for _, f := range fields {
		if _, ok := e.loaded[f]; !ok {
			missing = append(missing, f)
		}
	}
	kind := Cached
	if len(missing) > 0 {
		kind = Appended
		if len(e.loaded) == 0 {
			kind = Loaded
		}
		values, err := s.Document(ctx, id, missing)
		if err != nil {
			return store.Fields{}, kind, fmt.Errorf("document %d: %w: %w", id, internalerr.ErrFieldLoadFailed, err)
		}
		e.fields.Merge(values)
		for _, f := range missing {
			e.loaded[f] = struct{}{}
		}
	}
	return e.fields.Project(fields), kind, nil
}

// Release returns a checkout obtained from Manager.Acquire.
func (c *Cache) Release() {
	if c.refs.Add(-1) == 0 {
		c.closed.Store(true)
		c.entries.Purge()
	}
}

// Closed reports whether every checkout was released and the cache was
// purged.
func (c *Cache) Closed() bool { return c.closed.Load() }

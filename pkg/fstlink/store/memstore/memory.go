package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

// Index is an in-memory implementation of store.Index for tests and
// examples. Document ids are assigned in insertion order starting at 0.
type Index struct {
	mu       sync.RWMutex
	docs     []store.Fields
	uriIndex map[string]uint32
	version  int64
	closed   bool

	refs  atomic.Int64
	reads sync.Map // field name -> *atomic.Int64
	fail  map[uint32]error
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		uriIndex: make(map[string]uint32),
		fail:     make(map[uint32]error),
	}
}

// Close implements store.Index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	return nil
}

// Upsert inserts or replaces a document, keyed by URI.
func (ix *Index) Upsert(ctx context.Context, uri string, fields store.Fields) (uint32, error) {
	if uri == "" {
		return 0, fmt.Errorf("%w: empty uri", internalerr.ErrInvalidInput)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return 0, internalerr.ErrStoreUnavailable
	}

	doc := store.NewFields()
	doc.Merge(fields)
	doc.Strings[store.IDField] = []string{uri}

	id, ok := ix.uriIndex[uri]
	if ok {
		ix.docs[id] = doc
	} else {
		id = uint32(len(ix.docs))
		ix.docs = append(ix.docs, doc)
		ix.uriIndex[uri] = id
	}
	ix.version++
	return id, nil
}

// FailDocument makes every subsequent Document call for id return err.
func (ix *Index) FailDocument(id uint32, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.fail[id] = err
}

// Acquire implements store.Index.
func (ix *Index) Acquire(ctx context.Context) (store.Searcher, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, internalerr.ErrStoreUnavailable
	}
	ix.refs.Add(1)
	return &searcher{ix: ix, version: ix.version, maxDoc: uint32(len(ix.docs))}, nil
}

// Refs returns the number of searchers not yet released.
func (ix *Index) Refs() int64 {
	return ix.refs.Load()
}

// FieldReads returns how often the stored values of field were read
// through Document.
func (ix *Index) FieldReads(field string) int64 {
	if v, ok := ix.reads.Load(field); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

func (ix *Index) countRead(field string) {
	v, _ := ix.reads.LoadOrStore(field, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

type searcher struct {
	ix       *Index
	version  int64
	maxDoc   uint32
	released sync.Once
}

func (s *searcher) Version() int64 { return s.version }

func (s *searcher) MaxDoc() uint32 { return s.maxDoc }

func (s *searcher) Release() {
	s.released.Do(func() { s.ix.refs.Add(-1) })
}

func (s *searcher) FieldNames(ctx context.Context) ([]string, error) {
	s.ix.mu.RLock()
	defer s.ix.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, doc := range s.ix.docs {
		for _, name := range doc.Names() {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *searcher) ForEachValue(ctx context.Context, field string, fn func(id uint32, value string) error) error {
	s.ix.mu.RLock()
	defer s.ix.mu.RUnlock()
	for id, doc := range s.ix.docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, v := range doc.Strings[field] {
			if err := fn(uint32(id), v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *searcher) Document(ctx context.Context, id uint32, fields []string) (store.Fields, error) {
	s.ix.mu.RLock()
	defer s.ix.mu.RUnlock()
	if err, ok := s.ix.fail[id]; ok {
		return store.Fields{}, err
	}
	if int(id) >= len(s.ix.docs) {
		return store.Fields{}, fmt.Errorf("document %d: %w", id, internalerr.ErrNotFound)
	}
	for _, f := range fields {
		s.ix.countRead(f)
	}
	return s.ix.docs[id].Project(fields), nil
}

package fst

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/vellum"
)

// Builder collects label keys and their documents.
type Builder struct {
	keys map[string]*roaring.Bitmap
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{keys: make(map[string]*roaring.Bitmap)}
}

// Add registers docID under the key formed by terms. Empty term lists and
// terms containing Separator are ignored.
func (b *Builder) Add(terms []string, docID uint32) bool {
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if t == "" || strings.IndexByte(t, Separator) >= 0 {
			return false
		}
	}
	key := string(Key(terms))
	bm, ok := b.keys[key]
	if !ok {
		bm = roaring.New()
		b.keys[key] = bm
	}
	bm.Add(docID)
	return true
}

// Len returns the number of distinct keys added so far.
func (b *Builder) Len() int { return len(b.keys) }

// Build compiles the automaton. Keys with identical document sets share
// one postings entry.
func (b *Builder) Build(indexVersion int64) (*Automaton, error) {
	keys := make([]string, 0, len(b.keys))
	for k := range b.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	a := &Automaton{indexVersion: indexVersion}
	if len(keys) == 0 {
		return a, nil
	}

	var buf bytes.Buffer
	vb, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("new fst builder: %w", err)
	}

	ordinals := make(map[string]uint64)
	for _, k := range keys {
		bm := b.keys[k]
		bm.RunOptimize()
		sig, err := bm.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("encode postings: %w", err)
		}
		ord, ok := ordinals[string(sig)]
		if !ok {
			ord = uint64(len(a.postings))
			ordinals[string(sig)] = ord
			a.postings = append(a.postings, bm)
		}
		if err := vb.Insert([]byte(k), ord); err != nil {
			return nil, fmt.Errorf("insert %q: %w", k, err)
		}
	}
	if err := vb.Close(); err != nil {
		return nil, fmt.Errorf("close fst builder: %w", err)
	}

	a.data = buf.Bytes()
	a.fst, err = vellum.Load(a.data)
	if err != nil {
		return nil, fmt.Errorf("load fst: %w", err)
	}
	return a, nil
}

// Package fst holds the automaton that maps analyzed label token sequences
// to the set of documents carrying the label.
//
// Keys are the analyzed terms of a label joined by Separator. The value of
// a key is an ordinal into a postings table of document id sets; labels
// shared by the same documents share one postings entry.
package fst

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/vellum"
)

// Separator joins the terms of a key.
const Separator byte = 0x1f

// Automaton is an immutable, read-shared automaton plus its postings.
type Automaton struct {
	fst          *vellum.FST
	data         []byte
	postings     []*roaring.Bitmap
	indexVersion int64
}

// Walk is the position of one walk through the automaton.
type Walk struct {
	addr  int
	out   uint64
	terms int
}

// Terms returns how many terms the walk consumed.
func (w Walk) Terms() int { return w.terms }

// IndexVersion returns the version of the document index the automaton
// was built from.
func (a *Automaton) IndexVersion() int64 { return a.indexVersion }

// Len returns the number of keys.
func (a *Automaton) Len() int {
	if a.fst == nil {
		return 0
	}
	return a.fst.Len()
}

// NumPostings returns the number of distinct document id sets.
func (a *Automaton) NumPostings() int { return len(a.postings) }

// SizeBytes estimates the memory held by the automaton.
func (a *Automaton) SizeBytes() int64 {
	size := int64(len(a.data))
	for _, p := range a.postings {
		size += int64(p.GetSizeInBytes())
	}
	return size
}

// Start returns a walk positioned at the root.
func (a *Automaton) Start() Walk {
	if a.fst == nil {
		return Walk{addr: -1}
	}
	return Walk{addr: a.fst.Start()}
}

// Step advances w by one term. ok is false when no key continues with the
// term.
func (a *Automaton) Step(w Walk, term string) (next Walk, ok bool) {
	if a.fst == nil || w.addr < 0 || term == "" {
		return Walk{}, false
	}
	addr, out := w.addr, w.out
	if w.terms > 0 {
		var o uint64
		addr, o = a.fst.AcceptWithVal(addr, Separator)
		if !a.fst.CanMatch(addr) {
			return Walk{}, false
		}
		out += o
	}
	for i := 0; i < len(term); i++ {
		var o uint64
		addr, o = a.fst.AcceptWithVal(addr, term[i])
		if !a.fst.CanMatch(addr) {
			return Walk{}, false
		}
		out += o
	}
	return Walk{addr: addr, out: out, terms: w.terms + 1}, true
}

// Match reports whether w ends on a complete key and returns the postings
// ordinal of that key.
func (a *Automaton) Match(w Walk) (ordinal uint64, ok bool) {
	if a.fst == nil || w.addr < 0 || w.terms == 0 {
		return 0, false
	}
	final, out := a.fst.IsMatchWithVal(w.addr)
	if !final {
		return 0, false
	}
	return w.out + out, true
}

// Postings returns the document ids of an ordinal. The bitmap is shared
// and must not be modified.
func (a *Automaton) Postings(ordinal uint64) *roaring.Bitmap {
	if ordinal >= uint64(len(a.postings)) {
		return nil
	}
	return a.postings[ordinal]
}

// Lookup returns the documents of the key formed by terms.
func (a *Automaton) Lookup(terms []string) (*roaring.Bitmap, bool) {
	if a.fst == nil || len(terms) == 0 {
		return nil, false
	}
	ord, ok, err := a.fst.Get(Key(terms))
	if err != nil || !ok {
		return nil, false
	}
	return a.Postings(ord), true
}

// Close releases the underlying automaton.
func (a *Automaton) Close() error {
	if a.fst == nil {
		return nil
	}
	return a.fst.Close()
}

// Key joins terms into an automaton key.
func Key(terms []string) []byte {
	return []byte(strings.Join(terms, string(Separator)))
}

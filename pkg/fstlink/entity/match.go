// Package entity holds the tagging results: tags over text spans and the
// candidate entities matched at each span.
package entity

import "context"

// Document is the stored view of one entity.
type Document struct {
	URI        string
	Labels     []string
	Types      []string
	Redirects  []string
	Ranking    float64
	HasRanking bool
}

// Loader loads the fields of a document id.
type Loader interface {
	LoadDocument(ctx context.Context, id uint32) (*Document, error)
}

// Match is a lazy view over one candidate document. Matches are owned by a
// single session and are not safe for concurrent use.
type Match struct {
	DocID uint32
	// Score is set by scoring; 0 before.
	Score float64
	// Label is the label that produced the best score.
	Label string

	loader Loader
	loaded bool
	doc    *Document
	err    error
}

// NewMatch creates a match for id loading its fields through l.
func NewMatch(id uint32, l Loader) *Match {
	return &Match{DocID: id, loader: l}
}

// Document loads the fields on first use. A failed load is remembered and
// returned on every call.
func (m *Match) Document(ctx context.Context) (*Document, error) {
	if !m.loaded {
		m.loaded = true
		if m.loader == nil {
			m.doc = &Document{}
		} else {
			m.doc, m.err = m.loader.LoadDocument(ctx, m.DocID)
		}
	}
	return m.doc, m.err
}

// Loaded returns the document if it was loaded successfully.
func (m *Match) Loaded() (*Document, bool) {
	if !m.loaded || m.err != nil || m.doc == nil {
		return nil, false
	}
	return m.doc, true
}

// Equal compares matches by document id only.
func (m *Match) Equal(o *Match) bool {
	return o != nil && m.DocID == o.DocID
}

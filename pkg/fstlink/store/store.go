package store

import (
	"context"
	"sort"
)

// IDField is the reserved field name holding the entity URI of a document.
const IDField = "id"

// Index is the document/field index entities are linked against.
type Index interface {
	// Acquire checks out a reference-counted searcher. Callers must call
	// Release exactly once.
	Acquire(ctx context.Context) (Searcher, error)
	Close() error
}

// Writer is implemented by indexes that accept new entity documents.
type Writer interface {
	// Upsert stores fields for the entity with the given URI and bumps the
	// index version. Existing values of the document are replaced.
	Upsert(ctx context.Context, uri string, fields Fields) (uint32, error)
}

// Searcher is a view over the index at one version.
type Searcher interface {
	// Version increases with every write to the index.
	Version() int64
	// MaxDoc is one greater than the largest document id.
	MaxDoc() uint32
	// FieldNames lists every stored field name.
	FieldNames(ctx context.Context) ([]string, error)
	// ForEachValue calls fn for each string value stored in field.
	ForEachValue(ctx context.Context, field string, fn func(id uint32, value string) error) error
	// Document returns the stored values of the requested fields.
	Document(ctx context.Context, id uint32, fields []string) (Fields, error)
	Release()
}

// Fields holds stored values of one document. String fields are
// multi-valued; numeric fields hold a single value.
type Fields struct {
	Strings map[string][]string
	Numbers map[string]float64
}

// NewFields returns an empty field map.
func NewFields() Fields {
	return Fields{
		Strings: make(map[string][]string),
		Numbers: make(map[string]float64),
	}
}

// Merge copies all values of o into f, replacing values of the same field.
func (f Fields) Merge(o Fields) {
	for k, v := range o.Strings {
		f.Strings[k] = append([]string(nil), v...)
	}
	for k, v := range o.Numbers {
		f.Numbers[k] = v
	}
}

// Values returns the string values of a field.
func (f Fields) Values(field string) []string {
	return f.Strings[field]
}

// First returns the first string value of a field.
func (f Fields) First(field string) string {
	if v := f.Strings[field]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Number returns the numeric value of a field.
func (f Fields) Number(field string) (float64, bool) {
	v, ok := f.Numbers[field]
	return v, ok
}

// Names returns the sorted field names present in f.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f.Strings)+len(f.Numbers))
	for k := range f.Strings {
		names = append(names, k)
	}
	for k := range f.Numbers {
		if _, dup := f.Strings[k]; !dup {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Project returns a copy of f restricted to the given field names.
func (f Fields) Project(fields []string) Fields {
	out := NewFields()
	for _, name := range fields {
		if v, ok := f.Strings[name]; ok {
			out.Strings[name] = append([]string(nil), v...)
		}
		if v, ok := f.Numbers[name]; ok {
			out.Numbers[name] = v
		}
	}
	return out
}

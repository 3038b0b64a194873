package corpus

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/fstlink/pkg/fstlink/analysis"
	"github.com/cognicore/fstlink/pkg/fstlink/fst"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

// BuildFunc builds the automaton of a corpus.
type BuildFunc func(ctx context.Context, info *Info) (*fst.Automaton, error)

// IndexBuilder builds automata from the label values stored in an index.
type IndexBuilder struct {
	Index     store.Index
	Analyzers *analysis.Registry
}

// Build implements BuildFunc.
func (b *IndexBuilder) Build(ctx context.Context, info *Info) (*fst.Automaton, error) {
	an, err := b.Analyzers.Get(info.Analyzer)
	if err != nil {
		return nil, err
	}
	s, err := b.Index.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire searcher: %w", err)
	}
	defer s.Release()
	return BuildAutomaton(ctx, s, info.IndexedField, an)
}

// BuildAutomaton adds every value of field as a key of a new automaton.
// Values that analyze to no terms are skipped.
func BuildAutomaton(ctx context.Context, s store.Searcher, field string, an analysis.Analyzer) (*fst.Automaton, error) {
	b := fst.NewBuilder()
	err := s.ForEachValue(ctx, field, func(id uint32, value string) error {
		b.Add(analysis.Terms(an, value), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read field %q: %w", field, err)
	}
	a, err := b.Build(s.Version())
	if err != nil {
		return nil, fmt.Errorf("build automaton for %q: %w", field, err)
	}
	return a, nil
}

// DiscoverLanguages returns the languages for which the index stores an
// encoded variant of field, sorted.
func DiscoverLanguages(ctx context.Context, s store.Searcher, field string, enc store.FieldEncoding) ([]string, error) {
	names, err := s.FieldNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	seen := make(map[string]struct{})
	for _, name := range names {
		if lang, ok := enc.Decode(name, field); ok {
			seen[lang] = struct{}{}
		}
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs, nil
}

// Package analysis resolves named text analyzers. The same analyzer is used
// to build an automaton and to tokenize the text that is tagged against it.
package analysis

import (
	"fmt"
	"sync"

	bleveanalysis "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"

	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
)

// DefaultAnalyzer is used when a corpus names no analyzer.
const DefaultAnalyzer = "standard"

// Token is one analyzed term with its byte offsets in the input text.
type Token struct {
	Term     string
	Start    int
	End      int
	Position int
}

// Analyzer turns text into terms.
type Analyzer interface {
	Name() string
	Analyze(text string) []Token
}

// Registry hands out analyzers by name, backed by the bleve registry.
type Registry struct {
	mu     sync.Mutex
	cache  *registry.Cache
	byName map[string]Analyzer
}

// NewRegistry creates a registry with the built-in bleve analyzers.
func NewRegistry() *Registry {
	return &Registry{
		cache:  registry.NewCache(),
		byName: make(map[string]Analyzer),
	}
}

// Get returns the analyzer registered under name. The empty name selects
// DefaultAnalyzer.
func (r *Registry) Get(name string) (Analyzer, error) {
	if name == "" {
		name = DefaultAnalyzer
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byName[name]; ok {
		return a, nil
	}
	inner, err := r.cache.AnalyzerNamed(name)
	if err != nil {
		return nil, fmt.Errorf("%w: analyzer %q: %v", internalerr.ErrInvalidConfig, name, err)
	}
	a := &bleveAnalyzer{name: name, inner: inner}
	r.byName[name] = a
	return a, nil
}

// Register installs a custom analyzer under its name.
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[a.Name()] = a
}

type bleveAnalyzer struct {
	name  string
	inner bleveanalysis.Analyzer
}

func (a *bleveAnalyzer) Name() string { return a.name }

func (a *bleveAnalyzer) Analyze(text string) []Token {
	stream := a.inner.Analyze([]byte(text))
	out := make([]Token, 0, len(stream))
	for _, t := range stream {
		if len(t.Term) == 0 {
			continue
		}
		out = append(out, Token{
			Term:     string(t.Term),
			Start:    t.Start,
			End:      t.End,
			Position: t.Position,
		})
	}
	return out
}

// Terms returns only the analyzed terms of text.
func Terms(a Analyzer, text string) []string {
	toks := a.Analyze(text)
	terms := make([]string, len(toks))
	for i, t := range toks {
		terms[i] = t.Term
	}
	return terms
}

// Package corpus owns the automata entities are tagged against, one per
// language, and keeps their build state.
package corpus

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/fstlink/pkg/fstlink/fst"
)

// Info describes the automaton of one language. The exported fields are
// configuration; build state is guarded by the Info itself.
type Info struct {
	// Language is the language tag; "" is the default corpus.
	Language string
	// IndexedField holds the label values the automaton is built from.
	IndexedField string
	// StoredField holds the labels compared during scoring.
	StoredField string
	// File is the path of the persisted automaton.
	File string
	// Analyzer names the analyzer used to build and query the automaton.
	Analyzer string
	// AllowCreation permits building the automaton at runtime.
	AllowCreation bool

	mu            sync.Mutex
	key           uint64
	enqueued      ulid.ULID
	errMsg        string
	creationError bool
	loadFailedAt  time.Time
	indexVersion  int64
	soft          bool
	savedModTime  time.Time
	pinned        *fst.Automaton
}

// State is a snapshot of the build state of an Info.
type State struct {
	Enqueued      ulid.ULID
	ErrorMessage  string
	CreationError bool
	LoadFailedAt  time.Time
	IndexVersion  int64
}

// Pending reports whether a build is in flight.
func (s State) Pending() bool { return s.Enqueued != (ulid.ULID{}) }

// State returns the current build state.
func (i *Info) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return State{
		Enqueued:      i.enqueued,
		ErrorMessage:  i.errMsg,
		CreationError: i.creationError,
		LoadFailedAt:  i.loadFailedAt,
		IndexVersion:  i.indexVersion,
	}
}

func (i *Info) String() string {
	lang := i.Language
	if lang == "" {
		lang = "default"
	}
	return lang + " (" + i.IndexedField + ")"
}

// Corpus pairs an Info with the automaton resolved for one session.
type Corpus struct {
	Info      *Info
	Automaton *fst.Automaton
}

// FileName returns the default automaton file name of a language:
// "{name}.{lang}.fst", or "{name}.fst" for the default corpus.
func FileName(name, lang string) string {
	if lang == "" {
		return name + ".fst"
	}
	return name + "." + lang + ".fst"
}

// FilePath joins dir and the default file name.
func FilePath(dir, name, lang string) string {
	return filepath.Join(dir, FileName(name, lang))
}

// rootLanguage strips the region of a language tag: "en-GB" becomes "en".
func rootLanguage(lang string) (string, bool) {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return lang[:i], true
	}
	return "", false
}

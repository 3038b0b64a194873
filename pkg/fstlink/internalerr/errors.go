package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Corpus and session errors
var (
	// ErrCorpusUnavailable means there is no automaton for the language
	// and no default corpus to fall back to.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	// ErrBuildPending is retryable: a build for the corpus is in flight.
	ErrBuildPending = errors.New("corpus build pending")
	// ErrBuildEnqueued is retryable: this call enqueued a new build.
	ErrBuildEnqueued = errors.New("corpus build enqueued")
	// ErrBuildFailed is terminal until the corpus is reconfigured or rebuilt.
	ErrBuildFailed = errors.New("corpus build failed")
	// ErrFieldLoadFailed marks a stored field read failure for one document.
	ErrFieldLoadFailed = errors.New("field load failed")
	// ErrSessionInit aborts processing of a single document.
	ErrSessionInit = errors.New("session init failed")
)

// BuildError carries the message of the build failure that made a corpus
// unusable.
type BuildError struct {
	Language string
	Message  string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("corpus build failed for language %q: %s", e.Language, e.Message)
}

// Is reports ErrBuildFailed so callers can match with errors.Is.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuildFailed
}

// IsRetryable reports whether err signals a corpus that is being built and
// will become available later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBuildPending) || errors.Is(err, ErrBuildEnqueued)
}

package corpus

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cognicore/fstlink/pkg/fstlink/fst"
	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/metrics"
)

// Options configures a Registry.
type Options struct {
	// PoolSize bounds concurrent builds. Defaults to 1.
	PoolSize int
	Arena    ArenaOptions
	// Build creates the automaton of a corpus. Required.
	Build   BuildFunc
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Registry resolves the automaton of a language, loading it from its file
// or building it in the background.
type Registry struct {
	mu      sync.RWMutex
	infos   map[string]*Info
	nextKey uint64

	arena *arena
	build BuildFunc
	sem   *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// runMu orders wg.Add after a closed check against Close's wg.Wait.
	runMu  sync.Mutex
	closed atomic.Bool

	genMu   sync.Mutex
	entropy *ulid.MonotonicEntropy

	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates an empty registry.
func New(opts Options) (*Registry, error) {
	if opts.Build == nil {
		return nil, fmt.Errorf("%w: corpus registry needs a build function", internalerr.ErrInvalidConfig)
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 1
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ar, err := newArena(opts.Arena, opts.Metrics)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		infos:   make(map[string]*Info),
		arena:   ar,
		build:   opts.Build,
		sem:     semaphore.NewWeighted(int64(opts.PoolSize)),
		ctx:     ctx,
		cancel:  cancel,
		entropy: ulid.Monotonic(rand.Reader, 0),
		log:     log.Named("corpus"),
		metrics: opts.Metrics,
	}, nil
}

// Add registers the corpus of info.Language.
func (r *Registry) Add(info *Info) error {
	if info.IndexedField == "" || info.File == "" {
		return fmt.Errorf("%w: corpus %q needs an indexed field and a file", internalerr.ErrInvalidConfig, info.Language)
	}
	if info.StoredField == "" {
		info.StoredField = info.IndexedField
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.infos[info.Language]; dup {
		return fmt.Errorf("%w: duplicate corpus for language %q", internalerr.ErrInvalidConfig, info.Language)
	}
	r.nextKey++
	info.key = r.nextKey
	r.infos[info.Language] = info
	return nil
}

// Info returns the corpus registered for exactly lang.
func (r *Registry) Info(lang string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.infos[lang]
	return info, ok
}

// Lookup returns the corpus of lang, falling back to its root language.
func (r *Registry) Lookup(lang string) (*Info, bool) {
	if info, ok := r.Info(lang); ok {
		return info, true
	}
	if root, ok := rootLanguage(lang); ok {
		return r.Info(root)
	}
	return nil, false
}

// Languages returns the registered languages, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.infos))
	for l := range r.infos {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// GetOrBuild returns the corpus of lang. When no automaton is resident it
// is loaded from its file, or a build is enqueued and a retryable error
// returned.
func (r *Registry) GetOrBuild(ctx context.Context, lang string) (*Corpus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, ok := r.Lookup(lang)
	if !ok {
		return nil, fmt.Errorf("%w: no corpus for language %q", internalerr.ErrCorpusUnavailable, lang)
	}

	info.mu.Lock()
	defer info.mu.Unlock()

	if fa := r.residentLocked(info); fa != nil {
		return &Corpus{Info: info, Automaton: fa}, nil
	}
	if fa := r.loadLocked(info); fa != nil {
		return &Corpus{Info: info, Automaton: fa}, nil
	}
	if info.enqueued != (ulid.ULID{}) {
		return nil, fmt.Errorf("%w: %s", internalerr.ErrBuildPending, info)
	}
	if info.errMsg != "" && !info.AllowCreation {
		return nil, &internalerr.BuildError{Language: info.Language, Message: info.errMsg}
	}
	if info.AllowCreation {
		if _, ok := r.enqueueLocked(info); ok {
			if info.errMsg != "" {
				r.log.Info("retrying failed build", zap.Stringer("corpus", info), zap.String("error", info.errMsg))
			}
			return nil, fmt.Errorf("%w: %s", internalerr.ErrBuildEnqueued, info)
		}
	}
	return nil, fmt.Errorf("%w: %s has no automaton", internalerr.ErrCorpusUnavailable, info)
}

func (r *Registry) residentLocked(info *Info) *fst.Automaton {
	if info.pinned != nil {
		return info.pinned
	}
	fa, ok := r.arena.get(info.key)
	if !ok {
		info.soft = false
		return nil
	}
	if !info.soft && r.arena.holdSoft(info.key, fa) {
		info.soft = true
	}
	return fa
}

func (r *Registry) loadLocked(info *Info) *fst.Automaton {
	st, err := os.Stat(info.File)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn("cannot stat automaton file", zap.String("file", info.File), zap.Error(err))
		}
		return nil
	}
	if !info.loadFailedAt.IsZero() && !st.ModTime().After(info.loadFailedAt) {
		return nil
	}
	fa, err := fst.Load(info.File)
	if err != nil {
		info.loadFailedAt = time.Now()
		r.metrics.FileLoad(info.Language, false)
		r.log.Warn("cannot load automaton file",
			zap.Stringer("corpus", info), zap.String("file", info.File), zap.Error(err))
		return nil
	}
	r.metrics.FileLoad(info.Language, true)
	info.loadFailedAt = time.Time{}
	info.indexVersion = fa.IndexVersion()
	r.holdLocked(info, fa)
	r.log.Debug("loaded automaton",
		zap.Stringer("corpus", info), zap.Int("keys", fa.Len()), zap.Int64("index_version", fa.IndexVersion()))
	return fa
}

// holdLocked makes fa the resident automaton of info. An automaton the
// arena refuses is pinned instead.
func (r *Registry) holdLocked(info *Info, fa *fst.Automaton) {
	info.soft = false
	if r.arena.holdWeak(info.key, fa) {
		return
	}
	r.arena.drop(info.key)
	info.pinned = fa
	r.metrics.Pinned(info.Language)
	r.log.Warn("automaton exceeds the arena budget, keeping it pinned",
		zap.Stringer("corpus", info),
		zap.Int64("size", fa.SizeBytes()),
		zap.Int64("max_cost", r.arena.maxCost))
}

func (r *Registry) newGeneration() ulid.ULID {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return ulid.MustNew(ulid.Now(), r.entropy)
}

// enqueueLocked starts a build of info. It returns false once the registry
// is closed.
func (r *Registry) enqueueLocked(info *Info) (ulid.ULID, bool) {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.closed.Load() {
		return ulid.ULID{}, false
	}
	gen := r.newGeneration()
	info.enqueued = gen
	r.wg.Add(1)
	go r.run(info, gen)
	r.log.Debug("build enqueued", zap.Stringer("corpus", info), zap.Stringer("generation", gen))
	return gen, true
}

// Enqueue starts a background build of lang, superseding any build that
// has not completed yet.
func (r *Registry) Enqueue(lang string) (ulid.ULID, error) {
	info, ok := r.Info(lang)
	if !ok {
		return ulid.ULID{}, fmt.Errorf("%w: no corpus for language %q", internalerr.ErrCorpusUnavailable, lang)
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	gen, ok := r.enqueueLocked(info)
	if !ok {
		return ulid.ULID{}, fmt.Errorf("%w: registry closed", internalerr.ErrCorpusUnavailable)
	}
	return gen, nil
}

// EnqueueIfStale enqueues a rebuild of lang when its automaton was built
// from an index version older than version and no build is in flight.
func (r *Registry) EnqueueIfStale(lang string, version int64) bool {
	info, ok := r.Info(lang)
	if !ok || r.closed.Load() {
		return false
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	if !info.AllowCreation || info.enqueued != (ulid.ULID{}) || version <= info.indexVersion {
		return false
	}
	if _, ok := r.enqueueLocked(info); !ok {
		return false
	}
	r.log.Info("index changed, rebuilding automaton",
		zap.Stringer("corpus", info),
		zap.Int64("automaton_version", info.indexVersion),
		zap.Int64("index_version", version))
	return true
}

func (r *Registry) isEnqueued(info *Info, gen ulid.ULID) bool {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.enqueued == gen
}

// abandon clears the pending state of gen without recording an error.
func (r *Registry) abandon(info *Info, gen ulid.ULID) {
	info.mu.Lock()
	defer info.mu.Unlock()
	if info.enqueued == gen {
		info.enqueued = ulid.ULID{}
	}
}

func (r *Registry) run(info *Info, gen ulid.ULID) {
	defer r.wg.Done()
	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.abandon(info, gen)
		return
	}
	defer r.sem.Release(1)

	if !r.isEnqueued(info, gen) {
		r.metrics.Build(info.Language, metrics.BuildDiscarded)
		r.log.Debug("skipping superseded build", zap.Stringer("corpus", info), zap.Stringer("generation", gen))
		return
	}
	fa, err := r.runBuild(r.ctx, info)
	if r.ctx.Err() != nil {
		r.abandon(info, gen)
		return
	}
	r.CompleteBuild(info.Language, gen, fa, err)
}

func (r *Registry) runBuild(ctx context.Context, info *Info) (*fst.Automaton, error) {
	r.metrics.Build(info.Language, metrics.BuildStarted)
	start := time.Now()
	fa, err := r.build(ctx, info)
	r.metrics.BuildDuration(info.Language, time.Since(start))
	if err == nil && fa == nil {
		err = errors.New("build returned no automaton")
	}
	return fa, err
}

// CompleteBuild installs the outcome of the build of generation gen. It
// returns false when gen was superseded and the outcome discarded.
func (r *Registry) CompleteBuild(lang string, gen ulid.ULID, fa *fst.Automaton, buildErr error) bool {
	info, ok := r.Info(lang)
	if !ok {
		return false
	}
	info.mu.Lock()
	defer info.mu.Unlock()

	if info.enqueued != gen {
		r.metrics.Build(info.Language, metrics.BuildDiscarded)
		r.log.Debug("discarding stale build", zap.Stringer("corpus", info), zap.Stringer("generation", gen))
		return false
	}
	info.enqueued = ulid.ULID{}

	if buildErr == nil && fa == nil {
		buildErr = errors.New("build returned no automaton")
	}
	if buildErr != nil {
		info.errMsg = buildErr.Error()
		info.creationError = true
		r.metrics.Build(info.Language, metrics.BuildFailed)
		r.log.Warn("automaton build failed", zap.Stringer("corpus", info), zap.Error(buildErr))
		return true
	}

	info.pinned = nil
	if err := fa.Save(info.File); err != nil {
		// nothing to reload from, keep it in memory
		info.pinned = fa
		r.log.Warn("cannot persist automaton", zap.Stringer("corpus", info), zap.String("file", info.File), zap.Error(err))
	} else if st, err := os.Stat(info.File); err == nil {
		info.savedModTime = st.ModTime()
	}
	info.errMsg = ""
	info.creationError = false
	info.loadFailedAt = time.Time{}
	info.indexVersion = fa.IndexVersion()
	r.holdLocked(info, fa)

	r.metrics.Build(info.Language, metrics.BuildCompleted)
	r.log.Info("automaton built",
		zap.Stringer("corpus", info),
		zap.Int("keys", fa.Len()),
		zap.Int("postings", fa.NumPostings()),
		zap.Int64("index_version", fa.IndexVersion()))
	return true
}

// Build builds lang synchronously and installs the result.
func (r *Registry) Build(ctx context.Context, lang string) (*Corpus, error) {
	info, ok := r.Info(lang)
	if !ok {
		return nil, fmt.Errorf("%w: no corpus for language %q", internalerr.ErrCorpusUnavailable, lang)
	}
	info.mu.Lock()
	gen := r.newGeneration()
	info.enqueued = gen
	info.mu.Unlock()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.abandon(info, gen)
		return nil, err
	}
	fa, err := r.runBuild(ctx, info)
	r.sem.Release(1)
	if ctx.Err() != nil {
		r.abandon(info, gen)
		return nil, ctx.Err()
	}

	if !r.CompleteBuild(lang, gen, fa, err) {
		return nil, fmt.Errorf("%w: %s was rebuilt concurrently", internalerr.ErrBuildPending, info)
	}
	if err != nil {
		return nil, &internalerr.BuildError{Language: lang, Message: err.Error()}
	}
	return &Corpus{Info: info, Automaton: fa}, nil
}

// Invalidate drops the resident automaton of lang and forgets an earlier
// file load failure, unless the file is the one last written by a build.
func (r *Registry) Invalidate(lang string) bool {
	info, ok := r.Info(lang)
	if !ok {
		return false
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	if st, err := os.Stat(info.File); err == nil && st.ModTime().Equal(info.savedModTime) {
		return false
	}
	info.loadFailedAt = time.Time{}
	info.pinned = nil
	info.soft = false
	r.arena.drop(info.key)
	r.log.Info("automaton file changed", zap.Stringer("corpus", info), zap.String("file", info.File))
	return true
}

// Wait blocks until every enqueued build has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Close cancels pending builds and releases resident automata.
func (r *Registry) Close() {
	r.runMu.Lock()
	first := r.closed.CompareAndSwap(false, true)
	r.runMu.Unlock()
	if !first {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.arena.close()
}

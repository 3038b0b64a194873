package corpus

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/cognicore/fstlink/pkg/fstlink/fst"
	"github.com/cognicore/fstlink/pkg/fstlink/metrics"
)

// Arena defaults.
const (
	DefaultArenaMaxCost = 1 << 30
	DefaultWeakTTL      = 5 * time.Minute
)

// ArenaOptions bounds the memory held by resident automata.
type ArenaOptions struct {
	// MaxCost is the total automaton size in bytes kept in memory.
	MaxCost int64
	// WeakTTL is how long an automaton nobody has read yet stays
	// resident.
	WeakTTL time.Duration
}

// arena keeps loaded automata. Weakly held entries expire after the weak
// TTL; softly held ones stay until evicted for cost. Dropped automata are
// reloaded from their file on the next read.
type arena struct {
	cache     *ristretto.Cache
	maxCost   int64
	weakTTL   time.Duration
	evictions atomic.Uint64
	metrics   *metrics.Metrics
}

func newArena(opts ArenaOptions, m *metrics.Metrics) (*arena, error) {
	if opts.MaxCost <= 0 {
		opts.MaxCost = DefaultArenaMaxCost
	}
	if opts.WeakTTL <= 0 {
		opts.WeakTTL = DefaultWeakTTL
	}
	a := &arena{maxCost: opts.MaxCost, weakTTL: opts.WeakTTL, metrics: m}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1000,
		MaxCost:            opts.MaxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict:            a.onEvict,
	})
	if err != nil {
		return nil, fmt.Errorf("create automaton arena: %w", err)
	}
	a.cache = cache
	return a, nil
}

// onEvict runs on the cache's goroutine and must not take locks held
// around Wait.
func (a *arena) onEvict(*ristretto.Item) {
	a.evictions.Add(1)
	a.metrics.Eviction()
}

func cost(fa *fst.Automaton) int64 {
	if n := fa.SizeBytes(); n > 0 {
		return n
	}
	return 1
}

func (a *arena) get(key uint64) (*fst.Automaton, bool) {
	v, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	fa, ok := v.(*fst.Automaton)
	return fa, ok
}

// fits reports whether fa can be held at all. The cache silently refuses
// entries costing more than its whole budget.
func (a *arena) fits(fa *fst.Automaton) bool {
	return cost(fa) <= a.maxCost
}

// holdWeak installs fa with the weak TTL. It returns false when fa does
// not fit the arena.
func (a *arena) holdWeak(key uint64, fa *fst.Automaton) bool {
	if !a.fits(fa) {
		return false
	}
	ok := a.cache.SetWithTTL(key, fa, cost(fa), a.weakTTL)
	a.cache.Wait()
	return ok
}

// holdSoft installs fa without TTL.
func (a *arena) holdSoft(key uint64, fa *fst.Automaton) bool {
	if !a.fits(fa) {
		return false
	}
	ok := a.cache.Set(key, fa, cost(fa))
	a.cache.Wait()
	return ok
}

func (a *arena) drop(key uint64) {
	a.cache.Del(key)
	a.cache.Wait()
}

func (a *arena) close() {
	a.cache.Close()
}

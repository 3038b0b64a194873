// Package metrics exposes the operational counters of the linking engine
// as Prometheus collectors. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fstlink"

// Build outcomes.
const (
	BuildStarted   = "started"
	BuildCompleted = "completed"
	BuildFailed    = "failed"
	BuildDiscarded = "discarded"
)

var durationBuckets = []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300}

// Metrics groups the collectors of one engine instance.
type Metrics struct {
	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	fileLoads     *prometheus.CounterVec
	evictions     prometheus.Counter
	pinned        *prometheus.CounterVec
	fieldLoads    *prometheus.CounterVec
	sessions      *prometheus.CounterVec
	tags          prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_builds_total",
			Help:      "Automaton builds by language and outcome.",
		}, []string{"language", "outcome"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "corpus_build_duration_seconds",
			Help:      "Time spent building an automaton.",
			Buckets:   durationBuckets,
		}, []string{"language"}),
		fileLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_file_loads_total",
			Help:      "Automaton loads from persisted files by status.",
		}, []string{"language", "status"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_arena_evictions_total",
			Help:      "Automata dropped from memory.",
		}),
		pinned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_pinned_total",
			Help:      "Automata kept outside the arena because they exceed its budget.",
		}, []string{"language"}),
		fieldLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_field_loads_total",
			Help:      "Entity field loads by kind.",
		}, []string{"kind"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Tagging sessions by status.",
		}, []string{"status"}),
		tags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tags_emitted_total",
			Help:      "Tags returned after scoring.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.builds, m.buildDuration, m.fileLoads, m.evictions, m.pinned,
		m.fieldLoads, m.sessions, m.tags,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Build counts a build outcome for language.
func (m *Metrics) Build(language, outcome string) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(language, outcome).Inc()
}

// BuildDuration records how long a build for language took.
func (m *Metrics) BuildDuration(language string, d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.WithLabelValues(language).Observe(d.Seconds())
}

// FileLoad counts an automaton file load.
func (m *Metrics) FileLoad(language string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.fileLoads.WithLabelValues(language, status).Inc()
}

// Eviction counts an automaton dropped from memory.
func (m *Metrics) Eviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

// Pinned counts an automaton of language held outside the arena.
func (m *Metrics) Pinned(language string) {
	if m == nil {
		return
	}
	m.pinned.WithLabelValues(language).Inc()
}

// FieldLoads adds n field loads of kind (loaded, cached, appended, failed).
func (m *Metrics) FieldLoads(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.fieldLoads.WithLabelValues(kind).Add(float64(n))
}

// Session counts an opened or failed session.
func (m *Metrics) Session(ok bool) {
	if m == nil {
		return
	}
	status := "opened"
	if !ok {
		status = "failed"
	}
	m.sessions.WithLabelValues(status).Inc()
}

// Tags adds n emitted tags.
func (m *Metrics) Tags(n int) {
	if m == nil || n == 0 {
		return
	}
	m.tags.Add(float64(n))
}

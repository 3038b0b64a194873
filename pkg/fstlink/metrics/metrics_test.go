package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Build("en", BuildStarted)
	m.Build("en", BuildCompleted)
	m.BuildDuration("en", 2*time.Second)
	m.FileLoad("en", false)
	m.FieldLoads("appended", 3)
	m.Session(true)
	m.Tags(4)
	m.Eviction()
	m.Pinned("de")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("en", BuildCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fileLoads.WithLabelValues("en", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fieldLoads.WithLabelValues("appended")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("opened")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.tags))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pinned.WithLabelValues("de")))

	_, err = New(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Build("", BuildFailed)
		m.BuildDuration("", time.Second)
		m.FileLoad("", true)
		m.Eviction()
		m.Pinned("")
		m.FieldLoads("loaded", 1)
		m.Session(false)
		m.Tags(1)
	})
}

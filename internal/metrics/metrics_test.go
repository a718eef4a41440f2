package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewIsSingleton(t *testing.T) {
	assert.Same(t, New(), New())
}

func TestCounters(t *testing.T) {
	m := New()
	before := testutil.ToFloat64(m.CascadeItems.WithLabelValues("closed"))
	m.Cascade("closed", 3)
	m.Cascade("closed", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(m.CascadeItems.WithLabelValues("closed")))

	before = testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "404"))
	m.Request("GET", 404)
	assert.Equal(t, before+1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "404")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Moved("window")
		m.Cascade("failed", 1)
		m.Ingested("risk")
		m.Request("POST", 201)
	})
}

package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the tracker's Prometheus collectors.
//
//   - scoutline_items_moved_total{mode} - reallocations by mode (window, date, initiative)
//   - scoutline_cascade_items_total{outcome} - initiative close fan-out (closed, skipped, failed)
//   - scoutline_items_ingested_total{kind} - source records normalized and stored
//   - scoutline_http_requests_total{method,status} - API requests served
type Metrics struct {
	ItemsMoved    *prometheus.CounterVec
	CascadeItems  *prometheus.CounterVec
	ItemsIngested *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
}

// New registers the collectors on the default registry once per process.
func New() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ItemsMoved: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scoutline_items_moved_total",
					Help: "Total number of item reallocations",
				},
				[]string{"mode"},
			),
			CascadeItems: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scoutline_cascade_items_total",
					Help: "Member items visited while closing initiatives",
				},
				[]string{"outcome"},
			),
			ItemsIngested: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scoutline_items_ingested_total",
					Help: "Total number of source records normalized into items",
				},
				[]string{"kind"},
			),
			HTTPRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scoutline_http_requests_total",
					Help: "Total number of API requests by method and status code",
				},
				[]string{"method", "status"},
			),
		}
	})
	return global
}

func (m *Metrics) Moved(mode string) {
	if m == nil {
		return
	}
	m.ItemsMoved.WithLabelValues(mode).Inc()
}

func (m *Metrics) Cascade(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CascadeItems.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) Ingested(kind string) {
	if m == nil {
		return
	}
	m.ItemsIngested.WithLabelValues(kind).Inc()
}

func (m *Metrics) Request(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

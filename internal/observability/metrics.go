// Package observability exposes Prometheus metrics for the bridge.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invoke outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// Invoke routes.
const (
	RoutePageLoad = "page_load"
	RouteEndpoint = "endpoint"
	RoutePlugin   = "plugin"
	RouteGlobal   = "global"
	RouteNone     = "none"
)

var (
	registerOnce sync.Once

	invokes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbridge",
			Subsystem: "invoke",
			Name:      "calls_total",
			Help:      "Inbound calls from page script by route and outcome.",
		},
		[]string{"route", "outcome"},
	)
	salts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbridge",
			Subsystem: "salt",
			Name:      "operations_total",
			Help:      "Salt mints and verifications.",
		},
		[]string{"result"},
	)
	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbridge",
			Subsystem: "event",
			Name:      "emitted_total",
			Help:      "Events delivered to windows or host listeners.",
		},
		[]string{"source"},
	)
	windowsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostbridge",
			Subsystem: "window",
			Name:      "open",
			Help:      "Currently registered windows.",
		},
	)
)

// RegisterMetrics registers the collectors with the default registry once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(invokes, salts, events, windowsOpen)
	})
}

// RecordInvoke counts one inbound call.
func RecordInvoke(route, outcome string) {
	RegisterMetrics()
	invokes.WithLabelValues(route, outcome).Inc()
}

// RecordSalt counts a mint ("issued") or a verification ("accepted", "rejected").
func RecordSalt(result string) {
	RegisterMetrics()
	salts.WithLabelValues(result).Inc()
}

// RecordEvent counts one emitted event. source is "host", "page" or "control".
func RecordEvent(source string) {
	RegisterMetrics()
	events.WithLabelValues(source).Inc()
}

// SetWindowsOpen records the number of registered windows.
func SetWindowsOpen(n int) {
	RegisterMetrics()
	windowsOpen.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// Package metrics exposes Prometheus collectors for gateway synchronization,
// access reconciliation and spec imports.
//
// Recording functions are no-ops until Init is called, so library code and
// tests never need to care whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type collectors struct {
	registry *prometheus.Registry

	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec

	routeSyncs      *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	grantChanges    *prometheus.CounterVec

	imports         *prometheus.CounterVec
	importEndpoints *prometheus.CounterVec
}

var (
	mu      sync.RWMutex
	current *collectors
)

// Init registers all collectors under namespace. Calling it again replaces
// the previous registry.
func Init(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	c := &collectors{
		registry: registry,
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_admin_calls_total",
			Help:      "Gateway admin API calls by environment, method and status code",
		}, []string{"environment", "method", "status"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_admin_call_duration_seconds",
			Help:      "Latency of gateway admin API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"environment", "method"}),
		routeSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_syncs_total",
			Help:      "Route synchronizations by operation and outcome",
		}, []string{"operation", "outcome"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_reconciliations_total",
			Help:      "Company access reconciliations by outcome",
		}, []string{"outcome"}),
		grantChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_grant_changes_total",
			Help:      "Route-level ACL grants added or removed",
		}, []string{"change"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spec_imports_total",
			Help:      "Spec imports and retries by final status",
		}, []string{"kind", "status"}),
		importEndpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spec_import_endpoints_total",
			Help:      "Imported endpoints by outcome",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		c.gatewayCalls, c.gatewayDuration,
		c.routeSyncs, c.reconciliations, c.grantChanges,
		c.imports, c.importEndpoints,
	)

	mu.Lock()
	current = c
	mu.Unlock()
}

func get() *collectors {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ObserveGatewayCall records one admin API round trip. status is 0 when the
// request never produced a response.
func ObserveGatewayCall(environment, method string, status int, elapsed time.Duration) {
	c := get()
	if c == nil {
		return
	}
	c.gatewayCalls.WithLabelValues(environment, method, strconv.Itoa(status)).Inc()
	c.gatewayDuration.WithLabelValues(environment, method).Observe(elapsed.Seconds())
}

// RecordRouteSync records a create/update/delete of a canonical route.
func RecordRouteSync(operation string, err error) {
	c := get()
	if c == nil {
		return
	}
	c.routeSyncs.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordReconciliation records an access reconciliation and its grant diff.
func RecordReconciliation(added, removed int, err error) {
	c := get()
	if c == nil {
		return
	}
	c.reconciliations.WithLabelValues(outcome(err)).Inc()
	c.grantChanges.WithLabelValues("added").Add(float64(added))
	c.grantChanges.WithLabelValues("removed").Add(float64(removed))
}

// RecordImport records a finished import or retry pass.
func RecordImport(kind, status string, succeeded, failed int) {
	c := get()
	if c == nil {
		return
	}
	c.imports.WithLabelValues(kind, status).Inc()
	c.importEndpoints.WithLabelValues("succeeded").Add(float64(succeeded))
	c.importEndpoints.WithLabelValues("failed").Add(float64(failed))
}

// Handler returns an HTTP handler for Prometheus scraping.
func Handler() http.Handler {
	c := get()
	if c == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

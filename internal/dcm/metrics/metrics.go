// Package metrics exposes Prometheus collectors for the HTTP transport, the
// request channels and the auxiliary process.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dcm"

// Metrics owns a private registry so tests and multiple app instances do not
// collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rateLimited  *prometheus.CounterVec

	channelCalls    *prometheus.CounterVec
	channelDuration *prometheus.HistogramVec

	auxUp            prometheus.Gauge
	auxSpawnFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429, by limit profile.",
		}, []string{"profile"}),

		channelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "calls_total",
			Help:      "Total number of channel invocations by outcome.",
		}, []string{"channel", "success"}),
		channelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "call_duration_seconds",
			Help:      "Duration of channel invocations. Password hashing dominates login and registration.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"channel"}),

		auxUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aux",
			Name:      "up",
			Help:      "1 while the auxiliary process is running.",
		}),
		auxSpawnFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aux",
			Name:      "spawn_failures_total",
			Help:      "Number of times the auxiliary process failed to start.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.rateLimited,
		m.channelCalls,
		m.channelDuration,
		m.auxUp,
		m.auxSpawnFailures,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request count and latency under route, which
// should be the mux pattern rather than the raw path to bound cardinality.
func (m *Metrics) InstrumentHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RateLimited counts a rejected request. Safe on a nil receiver.
func (m *Metrics) RateLimited(profile string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(profile).Inc()
}

// ObserveChannel records one channel invocation. Safe on a nil receiver.
func (m *Metrics) ObserveChannel(channel string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.channelCalls.WithLabelValues(channel, strconv.FormatBool(success)).Inc()
	m.channelDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// SetAuxRunning flips the aux process gauge. Safe on a nil receiver.
func (m *Metrics) SetAuxRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.auxUp.Set(1)
		return
	}
	m.auxUp.Set(0)
}

// AuxSpawnFailed counts a failed spawn. Safe on a nil receiver.
func (m *Metrics) AuxSpawnFailed() {
	if m == nil {
		return
	}
	m.auxSpawnFailures.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

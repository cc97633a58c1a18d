// Package metrics exposes Prometheus collectors for the resolver service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolverRequestsTotal         *prometheus.CounterVec
	resolverRequestDuration       *prometheus.HistogramVec
	resolverFetchBytesTotal       *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	browserSessionsActive         prometheus.Gauge
	browserSessionsTotal          *prometheus.CounterVec
	gateStepDurationSeconds       *prometheus.HistogramVec
	resolverRateLimitDelaySeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		resolverRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolver_requests_total",
				Help: "Total number of resolutions, labeled by adapter and outcome.",
			},
			[]string{"adapter", "outcome"},
		)

		resolverRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resolver_request_duration_seconds",
				Help:    "Histogram of resolution latencies, labeled by adapter.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"adapter"},
		)

		resolverFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolver_fetch_bytes_total",
				Help: "Total number of bytes fetched by static adapters, labeled by site.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		browserSessionsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "resolver_browser_sessions_active",
				Help: "Number of headless browser sessions currently alive.",
			},
		)

		browserSessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolver_browser_sessions_total",
				Help: "Total browser sessions by terminal result.",
			},
			[]string{"result"},
		)

		gateStepDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resolver_gate_step_duration_seconds",
				Help:    "Time spent waiting for and clicking one gate, labeled by sequence.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"sequence"},
		)

		resolverRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resolver_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveResolution records one finished resolution.
func ObserveResolution(adapter, outcome string, duration time.Duration) {
	Init()
	resolverRequestsTotal.WithLabelValues(adapter, outcome).Inc()
	resolverRequestDuration.WithLabelValues(adapter).Observe(duration.Seconds())
}

// ObserveFetch counts bytes downloaded from site.
func ObserveFetch(site string, bytesFetched int) {
	Init()
	if bytesFetched > 0 {
		resolverFetchBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncBrowserSessions marks a browser session as started.
func IncBrowserSessions() {
	Init()
	browserSessionsActive.Inc()
}

// DecBrowserSessions marks a browser session as torn down with the given result.
func DecBrowserSessions(result string) {
	Init()
	browserSessionsActive.Dec()
	browserSessionsTotal.WithLabelValues(result).Inc()
}

// ObserveGateStep records the duration of one gate step.
func ObserveGateStep(sequence string, duration time.Duration) {
	Init()
	gateStepDurationSeconds.WithLabelValues(sequence).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	resolverRateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

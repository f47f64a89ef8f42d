package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "reviews"

var (
	// API surface
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "API requests by route and status."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "API request duration seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)

	// provider calls
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "provider_requests_total", Help: "Outbound provider requests; status 0 is a transport error."},
		[]string{"provider", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_request_duration_seconds",
			Help:    "Outbound provider request duration seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8},
		},
		[]string{"provider", "endpoint"},
	)

	// pipeline
	ProviderFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "provider_fetch_total", Help: "Provider collections by provenance."},
		[]string{"provider", "source"}, // source: live|fallback
	)
	RecordsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "records_rejected_total", Help: "Raw provider records dropped by validation."},
		[]string{"provider"},
	)
	RecordsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "records_accepted_total", Help: "Raw provider records that passed validation."},
		[]string{"provider"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Collection cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

func serviceCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequests, HTTPLatency,
		ExternalRequests, ExternalLatency,
		ProviderFetches, RecordsRejected, RecordsAccepted,
		CacheEvents,
	}
}

// Serve starts a standalone metrics listener when addr is set.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// InitRegistry returns a fresh registry holding the service metrics plus
// the Go runtime and process collectors.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(serviceCollectors()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(provider, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(provider, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(provider, endpoint).Observe(dur.Seconds())
}

func ObserveProviderFetch(provider, source string) {
	ProviderFetches.WithLabelValues(provider, source).Inc()
}

// ObserveValidation records one validated batch.
func ObserveValidation(provider string, accepted, rejected int) {
	if accepted > 0 {
		RecordsAccepted.WithLabelValues(provider).Add(float64(accepted))
	}
	if rejected > 0 {
		RecordsRejected.WithLabelValues(provider).Add(float64(rejected))
	}
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

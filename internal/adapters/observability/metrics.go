package observability

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rate_sentinel/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinel", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"surface", "route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"surface", "route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinel", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinel", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	RuleSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinel", Name: "rule_saves_total", Help: "Hotel config saves by outcome."},
		[]string{"outcome"}, // ok|failed|rejected
	)
	PmsSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinel", Name: "pms_syncs_total", Help: "PMS activation syncs by outcome."},
		[]string{"outcome"},
	)
	Classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinel", Name: "risk_classifications_total", Help: "Portfolio points per risk quadrant."},
		[]string{"quadrant"},
	)
	Anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinel", Name: "occupancy_anomalies_total", Help: "Occupancy anomalies detected."},
		[]string{"kind"}, // drop|persistent|overbooked
	)
)

// Serve exposes reg on a side port; empty addr disables it.
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

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		RuleSaves, PmsSyncs, Classifications, Anomalies)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveHTTP records a request; surface is rules, portfolio or ops.
func ObserveHTTP(surface, route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(surface, route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(surface, route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveSave(outcome string) { RuleSaves.WithLabelValues(outcome).Inc() }

func ObserveSync(outcome string) { PmsSyncs.WithLabelValues(outcome).Inc() }

func ObserveQuadrant(quadrant string) { Classifications.WithLabelValues(quadrant).Inc() }

func ObserveAnomaly(kind string) { Anomalies.WithLabelValues(kind).Inc() }

// LabelErr turns an error into a low-cardinality label value.
func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	var ve *domain.ValidationError
	var fe *domain.FetchError
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, domain.ErrStateConflict):
		return "conflict"
	case errors.As(err, &fe):
		return "fetch"
	}
	return fmt.Sprintf("%T", err)
}

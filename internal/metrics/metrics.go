package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	punches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wall",
			Subsystem: "widget",
			Name:      "punches_total",
			Help:      "Punch attempts by outcome (accepted, gate_used, complete).",
		},
		[]string{"outcome"},
	)

	remoteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wall",
			Subsystem: "widget",
			Name:      "remote_failures_total",
			Help:      "Failed calls to the counter service by operation.",
		},
		[]string{"op"},
	)

	increments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wall",
			Subsystem: "counter",
			Name:      "increments_total",
			Help:      "Increments accepted by the counter service.",
		},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wall",
			Subsystem: "counter",
			Name:      "rate_limited_total",
			Help:      "Increment requests rejected by the per-client limiter.",
		},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wall",
			Subsystem: "widget",
			Name:      "websocket_clients",
			Help:      "Browsers currently subscribed to live counts.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wall",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wall",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		punches,
		remoteFailures,
		increments,
		rateLimited,
		wsClients,
		httpRequests,
		httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordPunch(outcome string) { punches.WithLabelValues(outcome).Inc() }

func RecordRemoteFailure(op string) { remoteFailures.WithLabelValues(op).Inc() }

func RecordIncrement() { increments.Inc() }

func RecordRateLimited() { rateLimited.Inc() }

func SetWebsocketClients(n int) { wsClients.Set(float64(n)) }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request counts and latency labelled by mux route
// template, so path parameters do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	decisions *prometheus.CounterVec
	ideas     *prometheus.CounterVec
}

// newMetrics registers the server's collectors on a private registry so
// several servers can live in one process
func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"path", "status"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_route_decisions_total",
				Help: "Total number of routing decisions by route and fallback reason",
			},
			[]string{"route", "fallback"},
		),
		ideas: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_video_idea_requests_total",
				Help: "Total number of video idea requests by fallback reason",
			},
			[]string{"fallback"},
		),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (m *metrics) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
	})
}

func fallbackLabel(reason string) string {
	if reason == "" {
		return "none"
	}
	return reason
}

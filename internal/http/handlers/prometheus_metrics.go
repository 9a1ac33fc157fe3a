package handlers

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/diagnostic"
)

const metricsNamespace = "leakdiag"

// Metrics holds the service's prometheus collectors. It satisfies both the
// submission observer and the request metrics middleware.
type Metrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDurationBuckets *prometheus.HistogramVec
	submissionsTotal       *prometheus.CounterVec
	integrationResults     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served.",
			},
			[]string{"route", "method", "status"},
		),
		requestDurationBuckets: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request durations in seconds.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"route", "method"},
		),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "submissions_total",
				Help:      "Stored diagnostic submissions by leak bucket.",
			},
			[]string{"bucket"},
		),
		integrationResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "integration_results_total",
				Help:      "Follow-up integration calls by integration and outcome.",
			},
			[]string{"integration", "outcome"},
		),
	}
	reg.MustRegister(m.requestsTotal, m.requestDurationBuckets, m.submissionsTotal, m.integrationResults)
	return m
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// InitPrometheusMetrics registers the collectors with the default registry
// once and returns them.
func InitPrometheusMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDurationBuckets.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSubmission(bucket diagnostic.Bucket) {
	m.submissionsTotal.WithLabelValues(string(bucket)).Inc()
}

func (m *Metrics) ObserveIntegration(name string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.integrationResults.WithLabelValues(name, outcome).Inc()
}

// MetricsHandler serves the service's own metric families from g in the
// prometheus text format. Go runtime and process collectors are left out.
func MetricsHandler(g prometheus.Gatherer) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		metricFamilies, err := g.Gather()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to gather metrics")
			return
		}

		filtered := make([]*dto.MetricFamily, 0, len(metricFamilies))
		for _, mf := range metricFamilies {
			if strings.HasPrefix(mf.GetName(), metricsNamespace+"_") {
				filtered = append(filtered, mf)
			}
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range filtered {
			if err := encoder.Encode(mf); err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}

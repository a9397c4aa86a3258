// Package metrics exposes prometheus counters for the review workflow and
// the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docreview"

type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	reviewsTotal          *prometheus.CounterVec
	resubmissionsTotal    prometheus.Counter
	assignmentsTotal      prometheus.Counter
	uploadsTotal          *prometheus.CounterVec
	uploadRejectionsTotal *prometheus.CounterVec
	storeConflictsTotal   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Requests currently being served.",
		}),
		reviewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Review decisions recorded, by decision.",
		}, []string{"decision"}),
		resubmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resubmissions_total",
			Help:      "Rejected documents sent back to pending.",
		}),
		assignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Reviewer assignments created.",
		}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Documents uploaded, by file type.",
		}, []string{"file_type"}),
		uploadRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_rejections_total",
			Help:      "Uploads refused at the boundary, by reason.",
		}, []string{"reason"}),
		storeConflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_conflicts_total",
			Help:      "Transactions that lost a race with a concurrent write.",
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.inFlight,
		m.reviewsTotal,
		m.resubmissionsTotal,
		m.assignmentsTotal,
		m.uploadsTotal,
		m.uploadRejectionsTotal,
		m.storeConflictsTotal,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency labelled by route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.requestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) Review(decision string) {
	m.reviewsTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) Resubmission() {
	m.resubmissionsTotal.Inc()
}

func (m *Metrics) Assignment() {
	m.assignmentsTotal.Inc()
}

func (m *Metrics) Upload(fileType string) {
	m.uploadsTotal.WithLabelValues(fileType).Inc()
}

func (m *Metrics) UploadRejected(reason string) {
	m.uploadRejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) StoreConflict(operation string) {
	m.storeConflictsTotal.WithLabelValues(operation).Inc()
}

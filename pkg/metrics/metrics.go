package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	LeadsSubmitted      prometheus.Counter
	SubmissionFailures  prometheus.Counter
	DuplicatesBlocked   *prometheus.CounterVec
	DedupCheckFailOpens prometheus.Counter
	TelemetryFallbacks  prometheus.Counter
	PopupsShown         *prometheus.CounterVec
	PopupsSuppressed    *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		LeadsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "leads_submitted_total",
			Help: "Total number of leads successfully submitted",
		}),
		SubmissionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lead_submission_failures_total",
			Help: "Total number of failed lead submission attempts",
		}),
		DuplicatesBlocked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_duplicates_blocked_total",
				Help: "Submissions rejected as duplicates, by tier that caught them",
			},
			[]string{"tier"},
		),
		DedupCheckFailOpens: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dedup_check_fail_opens_total",
			Help: "Remote duplicate checks that failed and were allowed through",
		}),
		TelemetryFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_fallbacks_total",
			Help: "Telemetry lookups that resolved to fallback values",
		}),
		PopupsShown: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_popups_shown_total",
				Help: "Engagement prompts allowed, by trigger category",
			},
			[]string{"trigger"},
		),
		PopupsSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engagement_popups_suppressed_total",
				Help: "Engagement prompts refused, by trigger category",
			},
			[]string{"trigger"},
		),
	}
}

// Middleware returns an Echo middleware recording request metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			labels := []string{c.Request().Method, c.Path(), strconv.Itoa(status)}
			m.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
			m.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

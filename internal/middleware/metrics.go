package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spliteth/spliteth/internal/apperr"
)

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// HTTPMetrics exposes Prometheus collectors for request instrumentation.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics constructs collectors for HTTP request metrics and registers
// them with the provided registerer. Collectors already registered under the
// same name are reused.
func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "spliteth"
	}
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "http"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		// chain writes wait for inclusion, so the tail is long
		buckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
		Buckets:   buckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}
	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	}))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{Requests: requests, Duration: duration, InFlight: inFlight}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// unmatchedRoute labels requests no route handled, keeping raw paths out of
// the label set.
const unmatchedRoute = "unmatched"

// Handler returns a Fiber middleware that records the HTTP metrics.
func (m *HTTPMetrics) Handler() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.HTTPStatus(err)
		}
		// Label values outlive the request; fasthttp reuses the buffers
		// behind c.Method, so copy them.
		route := c.Route().Path
		if route == "" || route == "/" {
			route = unmatchedRoute
		}
		labels := prometheus.Labels{
			"method": utils.CopyString(c.Method()),
			"route":  utils.CopyString(route),
			"status": strconv.Itoa(status),
		}
		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())
		return err
	}
}

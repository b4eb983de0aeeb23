package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/spliteth/spliteth/internal/apperr"
)

func TestHTTPMetricsHandlerRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(nil)})
	app.Use(metrics.Handler())
	app.Get("/badges/:collection/:badgeId", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})
	app.Post("/split", func(c *fiber.Ctx) error {
		return apperr.PreconditionFailed("Group is not funded")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/badges/0xabc/1", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	if _, err := app.Test(httptest.NewRequest(http.MethodPost, "/split", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	created := prometheus.Labels{"method": http.MethodGet, "route": "/badges/:collection/:badgeId", "status": "201"}
	if got := testutil.ToFloat64(metrics.Requests.With(created)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}
	failed := prometheus.Labels{"method": http.MethodPost, "route": "/split", "status": "412"}
	if got := testutil.ToFloat64(metrics.Requests.With(failed)); got != 1 {
		t.Fatalf("expected precondition counter 1, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("expected in-flight gauge to return to 0, got %f", got)
	}
	if samples := testutil.CollectAndCount(metrics.Duration); samples == 0 {
		t.Fatalf("expected histogram collector to have at least one sample")
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Requests != second.Requests {
		t.Fatalf("expected the registered counter to be reused")
	}
}

func TestHTTPMetricsHandlerNoopWhenNil(t *testing.T) {
	app := fiber.New()
	app.Use((*HTTPMetrics)(nil).Handler())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestHTTPMetricsLabelsSurviveLaterRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(nil)})
	app.Use(metrics.Handler())
	app.Get("/badges/:collection/:badgeId", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})
	app.Post("/split", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	requests := []struct{ method, path string }{
		{http.MethodGet, "/badges/0xabc/1"},
		{http.MethodPost, "/split"},
		{http.MethodPost, "/nope/xyz"},
		{http.MethodPost, "/nope/other"},
	}
	for _, r := range requests {
		if _, err := app.Test(httptest.NewRequest(r.method, r.path, nil)); err != nil {
			t.Fatalf("app.Test %s: %v", r.path, err)
		}
	}

	cases := []struct {
		labels prometheus.Labels
		want   float64
	}{
		{prometheus.Labels{"method": http.MethodGet, "route": "/badges/:collection/:badgeId", "status": "201"}, 1},
		{prometheus.Labels{"method": http.MethodPost, "route": "/split", "status": "200"}, 1},
		{prometheus.Labels{"method": http.MethodPost, "route": unmatchedRoute, "status": "404"}, 2},
	}
	for _, tc := range cases {
		if got := testutil.ToFloat64(metrics.Requests.With(tc.labels)); got != tc.want {
			t.Fatalf("series %v: expected %f, got %f", tc.labels, tc.want, got)
		}
	}
	if series := testutil.CollectAndCount(metrics.Requests); series != len(cases) {
		t.Fatalf("expected %d series, got %d", len(cases), series)
	}
}

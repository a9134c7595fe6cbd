package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/posts/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing/:id", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) })

	for _, path := range []string{"/posts/1", "/posts/2", "/missing/3"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/posts/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/missing/:id", "404")))
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.NotificationDelivered("LIKE")
	m.NotificationDelivered("LIKE")
	m.PushFailed()
	m.CacheLookup("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.notificationsCreated.WithLabelValues("LIKE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "socialgraph_push_failures_total 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.NotificationDelivered("FOLLOW")
		m.PushFailed()
		m.CacheLookup("miss")
	})
}

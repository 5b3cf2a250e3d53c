package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRollover(t *testing.T) {
	m := New()

	m.ObserveRollover(false, nil)
	m.ObserveRollover(true, nil)
	m.ObserveRollover(true, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollovers.WithLabelValues("false", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollovers.WithLabelValues("true", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollovers.WithLabelValues("true", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WeeksClosed))
}

func TestObserveRollover_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveRollover(true, nil) })
}

func TestRegister(t *testing.T) {
	m := New()
	assert.NoError(t, m.Register(nil))

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "portal_test_gauge", Help: "test"})
	require.NoError(t, m.Register(g))
	assert.Error(t, m.Register(g))

	var empty *Metrics
	assert.NoError(t, empty.Register(g))
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/42", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/api/users/{id}", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "portal_http_requests_total"))
}

package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagly/claim-intake/internal/observability"
)

func scrape(t *testing.T, m *observability.HTTPMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHTTPMetrics(t *testing.T) {
	m := observability.NewHTTPMetrics()

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Post("/auth/verify-otp", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"x"}`))
	})
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/verify-otp", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/def", nil))

	body := scrape(t, m)

	t.Run("labels by route pattern and status", func(t *testing.T) {
		assert.Contains(t, body, `http_requests_total{method="POST",route="/auth/verify-otp",status="400"} 1`)
		assert.Contains(t, body, `http_requests_total{method="GET",route="/users/{id}",status="200"} 2`)
	})

	t.Run("raw paths are not labels", func(t *testing.T) {
		assert.NotContains(t, body, "/users/abc")
	})

	t.Run("histograms are exported", func(t *testing.T) {
		assert.Contains(t, body, "http_request_duration_seconds_bucket")
		assert.Contains(t, body, "http_response_size_bytes_sum")
	})
}

func TestHTTPMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewHTTPMetrics()
	b := observability.NewHTTPMetrics()

	assert.NotSame(t, a.Registry(), b.Registry())
}

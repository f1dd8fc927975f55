package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestInstrumentHandler(t *testing.T) {
	m := metrics.New()

	h := m.InstrumentHandler("/v1/ipc/{channel}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/ipc/login-user", nil))
	}

	body := scrape(t, m)
	require.Contains(t, body, `dcm_http_requests_total{method="POST",route="/v1/ipc/{channel}",status="202"} 2`)
	require.Contains(t, body, `dcm_http_inflight_requests 0`)
}

func TestObserveChannel(t *testing.T) {
	m := metrics.New()

	m.ObserveChannel("login-user", true, 10*time.Millisecond)
	m.ObserveChannel("login-user", false, 10*time.Millisecond)
	m.ObserveChannel("login-user", false, 10*time.Millisecond)

	series, err := testutil.GatherAndCount(m.Registry, "dcm_ipc_call_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, series)

	body := scrape(t, m)
	require.Contains(t, body, `dcm_ipc_calls_total{channel="login-user",success="false"} 2`)
	require.Contains(t, body, `dcm_ipc_calls_total{channel="login-user",success="true"} 1`)
}

func TestAuxGauges(t *testing.T) {
	m := metrics.New()

	m.SetAuxRunning(true)
	require.Contains(t, scrape(t, m), "dcm_aux_up 1")

	m.SetAuxRunning(false)
	m.AuxSpawnFailed()
	body := scrape(t, m)
	require.Contains(t, body, "dcm_aux_up 0")
	require.Contains(t, body, "dcm_aux_spawn_failures_total 1")
}

func TestRateLimited(t *testing.T) {
	m := metrics.New()

	m.RateLimited("strict")
	m.RateLimited("strict")
	m.RateLimited("public")

	body := scrape(t, m)
	require.Contains(t, body, `dcm_http_rate_limited_total{profile="strict"} 2`)
	require.Contains(t, body, `dcm_http_rate_limited_total{profile="public"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics

	m.RateLimited("strict")
	m.ObserveChannel("x", true, time.Second)
	m.SetAuxRunning(true)
	m.AuxSpawnFailed()

	called := false
	h := m.InstrumentHandler("/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, called)
}

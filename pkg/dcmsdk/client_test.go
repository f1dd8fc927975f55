package dcmsdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestInvoke_SendsPositionalArguments(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotArgs []any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotArgs)
		_, _ = w.Write([]byte(`{"success":true,"user":{"username":"alice","serialNumber":"SN-1","lastUsedMode":"OFF"}}`))
	})

	user, err := c.LoginUser(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, "/v1/ipc/login-user", gotPath)
	require.Equal(t, []any{"alice", "pw"}, gotArgs)
	require.Equal(t, &UserSummary{Username: "alice", SerialNumber: "SN-1", LastUsedMode: "OFF"}, user)
}

func TestInvoke_NoArgumentsSendsEmptyArray(t *testing.T) {
	t.Parallel()

	var body string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid request"}`))
	})

	res, err := c.Invoke(context.Background(), "download-login-history")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "[]", body)
}

func TestCall_ChannelFailure(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Incorrect password"}`))
	})

	_, err := c.LoginUser(context.Background(), "alice", "wrong")
	var chErr *ChannelError
	require.True(t, errors.As(err, &chErr))
	require.Equal(t, "login-user", chErr.Channel)
	require.Equal(t, "Incorrect password", chErr.Message)
}

func TestCall_TransportFailure(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","error_description":"slow down"}`))
	})

	err := c.RegisterUser(context.Background(), "alice", "pw", "SN-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.IsRateLimited())
	require.Equal(t, "rate_limit_exceeded", apiErr.Code)
	require.Contains(t, apiErr.Error(), "slow down")
}

func TestGetSettingsForMode_ReturnsRawBlock(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"settings":{"lowerRateLimit":60}}`))
	})

	raw, err := c.GetSettingsForMode(context.Background(), "alice", "VOO")
	require.NoError(t, err)
	require.JSONEq(t, `{"lowerRateLimit":60}`, string(raw))
}

func TestGetReadiness_AcceptsDegraded(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","checks":{"store":"error","aux":"running"}}`))
	})

	health, err := c.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "running", health.Checks.Aux)
	require.Equal(t, "error", health.Checks.Store)
}

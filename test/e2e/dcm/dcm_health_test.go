package dcm_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/dcm/pkg/dcmsdk"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	client := setupDCM(t)
	ctx := t.Context()

	health, err := client.GetLiveness(ctx)
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)

	ready, err := client.GetReadiness(ctx)
	assertHealthy(t, ready, err)
	require.Equal(t, "ok", ready.Checks.Store)
	require.Equal(t, "disabled", ready.Checks.Aux)
}

func TestReadinessWithBrokenAux(t *testing.T) {
	env := map[string]string{"DCM_AUX_COMMAND": "/does/not/exist"}
	for k, v := range relaxedRateLimits {
		env[k] = v
	}
	baseURL, _ := setupDCMContainer(t, env)
	client := dcmsdk.NewClient(baseURL)

	ready, err := client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "degraded", ready.Status)
	require.Equal(t, "degraded", ready.Checks.Aux)

	// Degraded mode still serves accounts.
	registerAndLogin(t, client, "alice", "SN-1")
}

func TestMetricsExposed(t *testing.T) {
	baseURL, _ := setupDCMContainer(t, relaxedRateLimits)
	client := dcmsdk.NewClient(baseURL)
	registerAndLogin(t, client, "alice", "SN-1")

	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `dcm_ipc_calls_total{channel="login-user",success="true"} 1`)
	require.Contains(t, string(body), `dcm_ipc_calls_total{channel="register-user",success="true"} 1`)
}

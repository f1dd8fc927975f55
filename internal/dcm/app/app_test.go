package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/supervisor"
	"github.com/aussiebroadwan/dcm/pkg/dcmsdk"
	"github.com/aussiebroadwan/dcm/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, driver string) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		UsersFile:            filepath.Join(dir, "userData", "users.json"),
		HistoryFile:          filepath.Join(dir, "parameterHistory.json"),
		ExportDir:            filepath.Join(dir, "Downloads"),
		StoreDriver:          driver,
		DatabaseFile:         filepath.Join(dir, "dcm.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "text",
		Host:                 "127.0.0.1",
		Port:                 8080,
		ShutdownGracePeriod:  5 * time.Second,
		HousekeepingInterval: time.Hour,
		RateLimits:           httpx.DefaultRateLimits(),
	}
}

func invoke(t *testing.T, h http.Handler, channel, body string) dcmsdk.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ipc/"+channel, strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dcmsdk.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestApplication_ServesAccounts(t *testing.T) {
	for _, driver := range []string{DriverJSON, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			app, err := New(testConfig(t, driver))
			require.NoError(t, err)
			t.Cleanup(func() { _ = app.db.Close() })

			h := app.Handler()

			res := invoke(t, h, "register-user", `["alice","secret","SN-1"]`)
			require.True(t, res.Success, res.Message)

			res = invoke(t, h, "login-user", `["alice","secret"]`)
			require.True(t, res.Success, res.Message)
			require.Equal(t, "alice", res.User.Username)

			res = invoke(t, h, "login-user", `["alice","wrong"]`)
			require.False(t, res.Success)
			require.Equal(t, "Incorrect password", res.Message)
		})
	}
}

func TestApplication_PepperPersists(t *testing.T) {
	cfg := testConfig(t, DriverJSON)

	first, err := New(cfg)
	require.NoError(t, err)
	require.True(t, invoke(t, first.Handler(), "register-user", `["alice","secret","SN-1"]`).Success)
	require.NoError(t, first.db.Close())

	// A restart reads the same pepper, so old hashes still verify.
	second, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.db.Close() })
	require.True(t, invoke(t, second.Handler(), "login-user", `["alice","secret"]`).Success)
}

func TestApplication_PepperIndependentOfWorkingDir(t *testing.T) {
	cfg := testConfig(t, DriverJSON)
	cfg.PepperFile = ""
	cfg.applyPathDefaults()
	require.True(t, filepath.IsAbs(cfg.PepperFile))

	t.Chdir(t.TempDir())
	first, err := New(cfg)
	require.NoError(t, err)
	require.True(t, invoke(t, first.Handler(), "register-user", `["alice","secret","SN-1"]`).Success)
	require.NoError(t, first.db.Close())

	// Started from another directory, the same pepper is found.
	t.Chdir(t.TempDir())
	second, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.db.Close() })
	res := invoke(t, second.Handler(), "login-user", `["alice","secret"]`)
	require.True(t, res.Success, res.Message)
}

func TestApplication_ListenAddr(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"127.0.0.1", "127.0.0.1:8080"},
		{"0.0.0.0", "0.0.0.0:8080"},
		{"::1", "[::1]:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := testConfig(t, DriverJSON)
			cfg.Host = tt.host

			app, err := New(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = app.db.Close() })
			require.Equal(t, tt.want, app.server.Addr)
		})
	}
}

func TestApplication_DegradedAux(t *testing.T) {
	cfg := testConfig(t, DriverJSON)
	cfg.AuxCommand = filepath.Join(t.TempDir(), "missing-aux")

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	require.Error(t, app.aux.Start(t.Context()))
	require.Equal(t, supervisor.StateDegraded, app.aux.Status().State)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health dcmsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "degraded", health.Checks.Aux)

	// Channels keep working without the aux process.
	require.True(t, invoke(t, app.Handler(), "register-user", `["bob","pw","SN-2"]`).Success)
}

func TestApplication_Shutdown(t *testing.T) {
	app, err := New(testConfig(t, DriverSQLite))
	require.NoError(t, err)

	require.NoError(t, app.aux.Start(t.Context()))
	app.housekeepingService.Start()

	require.NoError(t, app.Shutdown())
	require.Error(t, app.db.Ping(t.Context()), "store is closed")
}

func TestApplication_ShutdownBeforeRun(t *testing.T) {
	app, err := New(testConfig(t, DriverJSON))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Shutdown() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown hung with housekeeping never started")
	}
}

func TestNew_RejectsUnwritableStore(t *testing.T) {
	cfg := testConfig(t, DriverSQLite)
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "missing", "dir", "dcm.db")

	_, err := New(cfg)
	require.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, DriverJSON)
	cfg.RateLimits.Strict.Burst = 0

	_, err := New(cfg)
	require.ErrorContains(t, err, "rate limit strict")
}

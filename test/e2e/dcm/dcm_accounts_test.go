package dcm_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	client := setupDCM(t)
	ctx := t.Context()

	user := registerAndLogin(t, client, "alice", "SN-1")
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "SN-1", user.SerialNumber)
	require.Equal(t, "OFF", user.LastUsedMode)

	assertChannelError(t, client.RegisterUser(ctx, "alice", "other", "SN-9"), "User already exists")

	_, err := client.LoginUser(ctx, "alice", "wrong")
	assertChannelError(t, err, "Incorrect password")

	_, err = client.LoginUser(ctx, "Alice", testPassword)
	assertChannelError(t, err, "User not found")
}

func TestCapacityLimit(t *testing.T) {
	client := setupDCM(t)
	ctx := t.Context()

	for i := range 10 {
		require.NoError(t, client.RegisterUser(ctx, fmt.Sprintf("user%02d", i), testPassword, fmt.Sprintf("SN-%d", i)))
	}

	assertChannelError(t, client.RegisterUser(ctx, "user10", testPassword, "SN-10"), "Maximum number of users reached")
	// An existing name is reported as a duplicate before the capacity check.
	assertChannelError(t, client.RegisterUser(ctx, "user00", testPassword, "SN-0"), "User already exists")
}

func TestModeSettingsRoundTrip(t *testing.T) {
	client := setupDCM(t)
	ctx := t.Context()
	registerAndLogin(t, client, "alice", "SN-1")

	defaults, err := client.GetSettingsForMode(ctx, "alice", "DDDR")
	require.NoError(t, err)
	var fields map[string]float64
	require.NoError(t, json.Unmarshal(defaults, &fields))
	require.Equal(t, float64(4), fields["activityThreshold"])

	settings := map[string]float64{
		"atrialAmplitude": 3.5,
		"lowerRateLimit":  60,
		"upperRateLimit":  120,
		"rateFactor":      8,
	}
	require.NoError(t, client.SetUser(ctx, "alice", "AAIR", settings))

	got, err := client.GetSettingsForMode(ctx, "alice", "AAIR")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(got, &fields))
	require.Equal(t, 3.5, fields["atrialAmplitude"])
	require.Equal(t, float64(8), fields["rateFactor"])
	require.Zero(t, fields["activityThreshold"], "a write replaces the whole block")

	user, err := client.LoginUser(ctx, "alice", testPassword)
	require.NoError(t, err)
	require.Equal(t, "AAIR", user.LastUsedMode)

	assertChannelError(t, client.SetUser(ctx, "alice", "XYZ", settings), "Unknown mode")
	assertChannelError(t, client.SetUser(ctx, "bob", "AAIR", settings), "User not found")
}

func TestHistoryExports(t *testing.T) {
	client := setupDCM(t)
	ctx := t.Context()
	registerAndLogin(t, client, "alice", "SN-1")

	require.NoError(t, client.SetUser(ctx, "alice", "VOO", map[string]float64{"lowerRateLimit": 50}))

	dir, err := client.DownloadParameterLog(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "/data/exports", dir)

	dir, err = client.DownloadLoginHistory(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "/data/exports", dir)

	_, err = client.DownloadLoginHistory(ctx, "nobody")
	assertChannelError(t, err, "User not found")
}

func TestUnknownChannel(t *testing.T) {
	client := setupDCM(t)

	res, err := client.Invoke(t.Context(), "echo", "ping")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "Unknown channel", res.Message)
}

package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportParameterChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.svc.Register(ctx, "alice", "secret", "SN-1"))

	aai := domain.AAISettings{Atrial: domain.Atrial{AtrialAmplitude: 3.5}}
	require.NoError(t, env.svc.SetModeSettings(ctx, "alice", aai))
	require.NoError(t, env.svc.SetModeSettings(ctx, "alice", domain.DDDSettings{AVDelay: 150}))

	dir, err := env.svc.ExportParameterChanges(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, env.svc.ExportDir, dir)

	rows := readCSV(t, filepath.Join(dir, "alice_parameter_log.csv"))
	require.Len(t, rows, 3)
	require.Equal(t, []string{"changeDate", "mode", "settings"}, rows[0])
	require.Equal(t, "AAI", rows[1][1])
	require.Equal(t, "DDD", rows[2][1])

	var cell map[string]float64
	require.NoError(t, json.Unmarshal([]byte(rows[1][2]), &cell))
	require.Equal(t, 3.5, cell["atrialAmplitude"])

	history := env.history(t, "alice")
	require.Equal(t, formatExportTime(history.ParameterChanges[0].ChangeDate), rows[1][0])
}

func TestExportParameterChanges_EmptyHistoryWritesHeader(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.svc.Register(ctx, "alice", "secret", "SN-1"))

	dir, err := env.svc.ExportParameterChanges(ctx, "alice")
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, "alice_parameter_log.csv"))
	require.Equal(t, [][]string{{"changeDate", "mode", "settings"}}, rows)
}

func TestExportLoginHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.svc.Register(ctx, "alice", "secret", "SN-1"))

	for range 2 {
		_, err := env.svc.Authenticate(ctx, "alice", "secret")
		require.NoError(t, err)
	}

	dir, err := env.svc.ExportLoginHistory(ctx, "alice")
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, "alice_login_history.csv"))
	require.Len(t, rows, 3)
	require.Equal(t, []string{"loginDate"}, rows[0])

	logins := env.history(t, "alice").LoginHistory
	require.Equal(t, formatExportTime(logins[0].LoginDate), rows[1][0])
	require.Equal(t, formatExportTime(logins[1].LoginDate), rows[2][0])
}

func TestExport_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ExportParameterChanges(ctx, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = env.svc.ExportLoginHistory(ctx, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = os.Stat(env.svc.ExportDir)
	require.True(t, os.IsNotExist(err), "nothing is written for unknown users")
}

func TestExport_OverwritesPreviousFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.svc.Register(ctx, "alice", "secret", "SN-1"))
	require.NoError(t, env.svc.SetModeSettings(ctx, "alice", domain.VOOSettings{}))

	dir, err := env.svc.ExportParameterChanges(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, readCSV(t, filepath.Join(dir, "alice_parameter_log.csv")), 2)

	require.NoError(t, env.svc.SetModeSettings(ctx, "alice", domain.AOOSettings{}))
	_, err = env.svc.ExportParameterChanges(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, readCSV(t, filepath.Join(dir, "alice_parameter_log.csv")), 3)
}

func TestExport_RefusesPathLikeNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.svc.Register(ctx, "bob", "secret", "SN-1"))
	require.NoError(t, env.svc.SetModeSettings(ctx, "bob", domain.VOOSettings{}))

	dir, err := env.svc.ExportParameterChanges(ctx, "bob")
	require.NoError(t, err)
	bobFile := filepath.Join(dir, "bob_parameter_log.csv")
	before, err := os.ReadFile(bobFile)
	require.NoError(t, err)

	// An entry written straight to the store, bypassing registration checks.
	for _, name := range []string{"../bob", "x/../../bob"} {
		require.NoError(t, env.store.History().AppendRegistration(ctx, name, "SN-X", env.clock.Now()))

		_, err = env.svc.ExportParameterChanges(ctx, name)
		require.ErrorIs(t, err, ErrInvalidRequest, name)
		_, err = env.svc.ExportLoginHistory(ctx, name)
		require.ErrorIs(t, err, ErrInvalidRequest, name)
	}

	after, err := os.ReadFile(bobFile)
	require.NoError(t, err)
	require.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "bob_parameter_log.csv"))
	require.True(t, os.IsNotExist(err), "nothing is written outside the export directory")
}

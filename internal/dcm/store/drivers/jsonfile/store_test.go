package jsonfile_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/aussiebroadwan/dcm/internal/dcm/store/drivers/jsonfile"
	"github.com/aussiebroadwan/dcm/internal/dcm/store/storetest"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*jsonfile.Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	users := filepath.Join(dir, "userData", "users.json")
	history := filepath.Join(dir, "install", "parameterHistory.json")
	return jsonfile.NewStore(users, history), users, history
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _, _ := newTestStore(t)
		return s
	})
}

func TestLoad_InitializesMissingFiles(t *testing.T) {
	s, usersPath, historyPath := newTestStore(t)
	ctx := context.Background()

	_, err := s.Records().Load(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(usersPath)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(data))

	_, err = s.History().Load(ctx)
	require.NoError(t, err)
	data, err = os.ReadFile(historyPath)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(data))
}

func TestLoad_CorruptFileIsAnError(t *testing.T) {
	s, usersPath, _ := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(usersPath), 0o750))
	require.NoError(t, os.WriteFile(usersPath, []byte(`{ not json`), 0o600))

	_, err := s.Records().Load(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestLoad_NullCollectionsAreNormalized(t *testing.T) {
	s, _, historyPath := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(historyPath), 0o750))
	require.NoError(t, os.WriteFile(historyPath, []byte(`[
		{"username":"alice","serialNumber":"SN-1","registrationDate":"2024-10-01T09:00:00Z","loginHistory":null}
	]`), 0o600))

	entry, err := s.History().Get(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, entry.LoginHistory)
	require.NotNil(t, entry.ParameterChanges)

	// The next write keeps the arrays as arrays.
	require.NoError(t, s.History().AppendLogin(context.Background(), "alice", time.Now()))
	data, err := os.ReadFile(historyPath)
	require.NoError(t, err)

	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.JSONEq(t, `[]`, string(raw[0]["parameterChanges"]))
}

func TestSaveAll_WritesReadableJSON(t *testing.T) {
	s, usersPath, _ := newTestStore(t)

	records := []domain.UserRecord{domain.NewUserRecord("alice", "hash", "SN-1")}
	require.NoError(t, s.Records().SaveAll(context.Background(), records))

	data, err := os.ReadFile(usersPath)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	require.Equal(t, "alice", raw[0]["username"])
	require.Equal(t, "OFF", raw[0]["lastUsedMode"])
	require.Contains(t, raw[0], "modes")

	// No temp files are left behind next to the target.
	entries, err := os.ReadDir(filepath.Dir(usersPath))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestHistory_ConcurrentAppendsAreNotLost(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.History().AppendRegistration(ctx, "alice", "SN-1", time.Now()))

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.History().AppendLogin(ctx, "alice", time.Now()))
		}()
	}
	wg.Wait()

	entry, err := s.History().Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entry.LoginHistory, n)
}

func TestCancelledContext(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Records().Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.History().AppendLogin(ctx, "alice", time.Now()), context.Canceled)
}

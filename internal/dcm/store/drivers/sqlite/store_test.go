package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/aussiebroadwan/dcm/internal/dcm/store/drivers/sqlite"
	"github.com/aussiebroadwan/dcm/internal/dcm/store/storetest"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "dcm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
}

func TestHistory_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcm.db")
	ctx := context.Background()
	at := time.Date(2024, 10, 1, 9, 0, 0, 123, time.UTC)

	s, err := sqlite.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.History().AppendRegistration(ctx, "alice", "SN-1", at))
	require.NoError(t, s.History().AppendParameterChange(ctx, "alice", domain.VVISettings{
		RateLimits: domain.RateLimits{LowerRateLimit: 55},
	}, at))
	require.NoError(t, s.Close())

	s, err = sqlite.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	entry, err := s.History().Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, at.Equal(entry.RegistrationDate))
	require.Len(t, entry.ParameterChanges, 1)
	require.Equal(t, domain.ModeVVI, entry.ParameterChanges[0].Mode)
	require.Equal(t, float64(55), entry.ParameterChanges[0].Settings.(domain.VVISettings).LowerRateLimit)
}

func TestRecords_SaveAllRejectsDuplicateUsernames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok := []domain.UserRecord{domain.NewUserRecord("alice", "h", "SN-1")}
	require.NoError(t, s.Records().SaveAll(ctx, ok))

	dup := []domain.UserRecord{
		domain.NewUserRecord("bob", "h", "SN-2"),
		domain.NewUserRecord("bob", "h", "SN-3"),
	}
	require.Error(t, s.Records().SaveAll(ctx, dup))

	// The failed write rolled back; the previous set is intact.
	loaded, err := s.Records().Load(ctx)
	require.NoError(t, err)
	require.Equal(t, ok, loaded)
}

// Package storetest holds the behaviour every store driver must share. Driver
// packages call Run from their own tests with a constructor for a fresh store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup should be registered on t.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("records start empty", func(t *testing.T) { testRecordsStartEmpty(t, newStore(t)) })
	t.Run("records save all replaces", func(t *testing.T) { testRecordsSaveAllReplaces(t, newStore(t)) })
	t.Run("records keep mode settings", func(t *testing.T) { testRecordsKeepModeSettings(t, newStore(t)) })
	t.Run("history registration", func(t *testing.T) { testHistoryRegistration(t, newStore(t)) })
	t.Run("history appends in order", func(t *testing.T) { testHistoryAppendsInOrder(t, newStore(t)) })
	t.Run("history unknown user", func(t *testing.T) { testHistoryUnknownUser(t, newStore(t)) })
	t.Run("history settings copy", func(t *testing.T) { testHistorySettingsCopy(t, newStore(t)) })
	t.Run("ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func testRecordsStartEmpty(t *testing.T, s store.Store) {
	records, err := s.Records().Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)

	entries, err := s.History().Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func testRecordsSaveAllReplaces(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := []domain.UserRecord{
		domain.NewUserRecord("alice", "hash-a", "SN-1"),
		domain.NewUserRecord("bob", "hash-b", "SN-2"),
	}
	require.NoError(t, s.Records().SaveAll(ctx, first))

	loaded, err := s.Records().Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first, loaded)

	second := []domain.UserRecord{domain.NewUserRecord("carol", "hash-c", "SN-3")}
	require.NoError(t, s.Records().SaveAll(ctx, second))

	loaded, err = s.Records().Load(ctx)
	require.NoError(t, err)
	require.Equal(t, second, loaded)
}

func testRecordsKeepModeSettings(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := domain.NewUserRecord("alice", "hash-a", "SN-1")
	aai := domain.AAISettings{
		Atrial:     domain.Atrial{AtrialAmplitude: 3.5, AtrialPulseWidth: 0.4, AtrialRefractoryPeriod: 250},
		RateLimits: domain.RateLimits{LowerRateLimit: 60, UpperRateLimit: 120},
	}
	require.NoError(t, u.Modes.Set(aai))
	u.LastUsedMode = domain.ModeAAI

	require.NoError(t, s.Records().SaveAll(ctx, []domain.UserRecord{u}))

	loaded, err := s.Records().Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, domain.ModeAAI, loaded[0].LastUsedMode)

	got, err := loaded[0].Modes.Get(domain.ModeAAI)
	require.NoError(t, err)
	require.Equal(t, domain.Settings(aai), got)
}

func testHistoryRegistration(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.History().AppendRegistration(ctx, "alice", "SN-1", at))

	entry, err := s.History().Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", entry.Username)
	require.Equal(t, "SN-1", entry.SerialNumber)
	require.True(t, at.Equal(entry.RegistrationDate))
	require.Empty(t, entry.LoginHistory)
	require.Empty(t, entry.ParameterChanges)

	err = s.History().AppendRegistration(ctx, "alice", "SN-9", at)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	entries, err := s.History().Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "SN-1", entries[0].SerialNumber)
}

func testHistoryAppendsInOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.History().AppendRegistration(ctx, "alice", "SN-1", base))
	require.NoError(t, s.History().AppendRegistration(ctx, "bob", "SN-2", base))

	for i := range 3 {
		require.NoError(t, s.History().AppendLogin(ctx, "alice", base.Add(time.Duration(i+1)*time.Minute)))
	}

	voo := domain.VOOSettings{RateLimits: domain.RateLimits{LowerRateLimit: 60}}
	ddd := domain.DDDSettings{AVDelay: 150}
	require.NoError(t, s.History().AppendParameterChange(ctx, "alice", voo, base.Add(time.Hour)))
	require.NoError(t, s.History().AppendParameterChange(ctx, "alice", ddd, base.Add(2*time.Hour)))

	entry, err := s.History().Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entry.LoginHistory, 3)
	for i, ev := range entry.LoginHistory {
		require.True(t, base.Add(time.Duration(i+1)*time.Minute).Equal(ev.LoginDate))
	}

	require.Len(t, entry.ParameterChanges, 2)
	require.Equal(t, domain.ModeVOO, entry.ParameterChanges[0].Mode)
	require.Equal(t, domain.Settings(voo), entry.ParameterChanges[0].Settings)
	require.Equal(t, domain.ModeDDD, entry.ParameterChanges[1].Mode)
	require.Equal(t, domain.Settings(ddd), entry.ParameterChanges[1].Settings)

	other, err := s.History().Get(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, other.LoginHistory)
	require.Empty(t, other.ParameterChanges)
}

func testHistoryUnknownUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()

	_, err := s.History().Get(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.History().AppendLogin(ctx, "ghost", now), store.ErrNotFound)
	require.ErrorIs(t, s.History().AppendParameterChange(ctx, "ghost", domain.AOOSettings{}, now), store.ErrNotFound)

	// Logging never creates entries.
	entries, err := s.History().Load(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func testHistorySettingsCopy(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.History().AppendRegistration(ctx, "alice", "SN-1", now))

	settings := domain.AAISettings{Atrial: domain.Atrial{AtrialAmplitude: 2}}
	require.NoError(t, s.History().AppendParameterChange(ctx, "alice", settings, now))

	settings.AtrialAmplitude = 7

	entry, err := s.History().Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entry.ParameterChanges, 1)
	require.Equal(t, float64(2), entry.ParameterChanges[0].Settings.(domain.AAISettings).AtrialAmplitude)
}

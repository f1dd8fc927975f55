package jsonfile

import (
	"context"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
)

type historyRepo struct {
	f *jsonFile
}

func (r *historyRepo) Load(ctx context.Context) ([]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.f.mu.Lock()
	defer r.f.mu.Unlock()

	return r.load()
}

func (r *historyRepo) Get(ctx context.Context, username string) (domain.HistoryEntry, error) {
	entries, err := r.Load(ctx)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	i := domain.FindHistory(entries, username)
	if i < 0 {
		return domain.HistoryEntry{}, store.ErrNotFound
	}
	return entries[i], nil
}

func (r *historyRepo) AppendRegistration(ctx context.Context, username, serialNumber string, at time.Time) error {
	return r.update(ctx, func(entries []domain.HistoryEntry) ([]domain.HistoryEntry, error) {
		if domain.FindHistory(entries, username) >= 0 {
			return nil, store.ErrAlreadyExists
		}
		return append(entries, domain.NewHistoryEntry(username, serialNumber, at)), nil
	})
}

func (r *historyRepo) AppendLogin(ctx context.Context, username string, at time.Time) error {
	return r.update(ctx, func(entries []domain.HistoryEntry) ([]domain.HistoryEntry, error) {
		i := domain.FindHistory(entries, username)
		if i < 0 {
			return nil, store.ErrNotFound
		}
		entries[i].LoginHistory = append(entries[i].LoginHistory, domain.LoginEvent{LoginDate: at.UTC()})
		return entries, nil
	})
}

func (r *historyRepo) AppendParameterChange(
	ctx context.Context,
	username string,
	settings domain.Settings,
	at time.Time,
) error {
	return r.update(ctx, func(entries []domain.HistoryEntry) ([]domain.HistoryEntry, error) {
		i := domain.FindHistory(entries, username)
		if i < 0 {
			return nil, store.ErrNotFound
		}
		// Settings variants are plain value structs, so the entry holds its own copy.
		entries[i].ParameterChanges = append(entries[i].ParameterChanges, domain.ParameterChange{
			ChangeDate: at.UTC(),
			Mode:       settings.Mode(),
			Settings:   settings,
		})
		return entries, nil
	})
}

// update runs one full read-modify-write cycle under the file lock. If fn
// fails, the file is left untouched.
func (r *historyRepo) update(
	ctx context.Context,
	fn func([]domain.HistoryEntry) ([]domain.HistoryEntry, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.f.mu.Lock()
	defer r.f.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}

	entries, err = fn(entries)
	if err != nil {
		return err
	}

	return r.f.write(entries)
}

// load must be called with the lock held.
func (r *historyRepo) load() ([]domain.HistoryEntry, error) {
	if err := r.f.ensure(); err != nil {
		return nil, err
	}

	var entries []domain.HistoryEntry
	if err := r.f.read(&entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	for i := range entries {
		if entries[i].LoginHistory == nil {
			entries[i].LoginHistory = []domain.LoginEvent{}
		}
		if entries[i].ParameterChanges == nil {
			entries[i].ParameterChanges = []domain.ParameterChange{}
		}
	}
	return entries, nil
}

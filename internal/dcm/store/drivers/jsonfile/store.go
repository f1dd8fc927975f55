package jsonfile

import (
	"context"

	"github.com/aussiebroadwan/dcm/internal/dcm/store"
)

// Store keeps accounts and history in two independent JSON files. Every
// operation re-reads from disk; nothing is cached between calls.
type Store struct {
	users   *jsonFile
	history *jsonFile
}

func NewStore(usersPath, historyPath string) *Store {
	return &Store{
		users:   newJSONFile(usersPath),
		history: newJSONFile(historyPath),
	}
}

func (s *Store) Records() store.Records { return &recordsRepo{f: s.users} }
func (s *Store) History() store.History { return &historyRepo{f: s.history} }

// ApplyMigrations creates both files if they are missing.
func (s *Store) ApplyMigrations() error {
	for _, f := range []*jsonFile{s.users, s.history} {
		f.mu.Lock()
		err := f.ensure()
		f.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; files are opened per operation.
func (s *Store) Close() error { return nil }

// Ping makes sure both files exist and are readable.
func (s *Store) Ping(ctx context.Context) error {
	for _, f := range []*jsonFile{s.users, s.history} {
		if err := ctx.Err(); err != nil {
			return err
		}

		f.mu.Lock()
		err := f.ensure()
		if err == nil {
			var contents []any
			err = f.read(&contents)
		}
		f.mu.Unlock()

		if err != nil {
			return err
		}
	}
	return nil
}

// UsersPath and HistoryPath expose where the files live, for logging.
func (s *Store) UsersPath() string   { return s.users.path }
func (s *Store) HistoryPath() string { return s.history.path }

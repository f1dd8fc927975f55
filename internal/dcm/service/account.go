package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/aussiebroadwan/dcm/pkg/cryptox"
	"github.com/aussiebroadwan/dcm/pkg/slogx"
)

// PasswordHasher is satisfied by *cryptox.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) error
}

// AccountService owns registration, authentication and per-mode settings.
// Every operation re-reads the store; nothing is cached between calls.
type AccountService struct {
	Store     store.Store
	Hasher    PasswordHasher
	ExportDir string

	// Now defaults to time.Now.
	Now func() time.Time

	// mu serializes load-check-save sequences on the record set.
	mu sync.Mutex
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates a new account with every mode at its defaults and opens
// its history entry.
func (s *AccountService) Register(ctx context.Context, username, password, serialNumber string) error {
	l := slogx.FromContext(ctx)

	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}
	if !safeFileName(username) {
		return fmt.Errorf("%w: username %q may not contain path separators or \"..\"", ErrInvalidRequest, username)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.Store.Records().Load(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	if domain.FindUser(records, username) >= 0 {
		return ErrUserExists
	}
	if len(records) >= domain.MaxUsers {
		return ErrCapacityExceeded
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	records = append(records, domain.NewUserRecord(username, hash, serialNumber))
	if err := s.Store.Records().SaveAll(ctx, records); err != nil {
		return fmt.Errorf("save records: %w", err)
	}

	err = s.Store.History().AppendRegistration(ctx, username, serialNumber, s.now())
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		// Left over from an earlier account with the same name; keep it.
		l.Warn("history entry already present at registration", slog.String("username", username))
	case err != nil:
		return fmt.Errorf("record registration: %w", err)
	}

	l.Info("user registered",
		slog.String("username", username),
		slog.Int("user_count", len(records)),
	)
	return nil
}

// Authenticate checks the password and records the login. The returned
// summary never carries the password hash.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (domain.UserSummary, error) {
	l := slogx.FromContext(ctx)

	records, err := s.Store.Records().Load(ctx)
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("load records: %w", err)
	}

	i := domain.FindUser(records, username)
	if i < 0 {
		return domain.UserSummary{}, ErrUserNotFound
	}
	user := records[i]

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Info("login rejected", slog.String("username", username))
			return domain.UserSummary{}, ErrIncorrectPassword
		}
		return domain.UserSummary{}, fmt.Errorf("verify password of %q: %w", username, err)
	}

	if err := s.Store.History().AppendLogin(ctx, username, s.now()); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.UserSummary{}, fmt.Errorf("record login: %w", err)
		}
		l.Warn("no history entry, login not recorded", slog.String("username", username))
	}

	return user.Summary(), nil
}

// SetModeSettings replaces the whole parameter block of the settings' mode,
// makes it the last used mode and appends a copy to the change history.
// Numeric ranges are not checked here.
func (s *AccountService) SetModeSettings(ctx context.Context, username string, settings domain.Settings) error {
	l := slogx.FromContext(ctx)

	if settings == nil {
		return fmt.Errorf("%w: settings are required", ErrInvalidRequest)
	}
	mode := settings.Mode()

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.Store.Records().Load(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	i := domain.FindUser(records, username)
	if i < 0 {
		return ErrUserNotFound
	}

	if err := records[i].Modes.Set(settings); err != nil {
		return err
	}
	records[i].LastUsedMode = mode

	if err := s.Store.Records().SaveAll(ctx, records); err != nil {
		return fmt.Errorf("save records: %w", err)
	}

	if err := s.Store.History().AppendParameterChange(ctx, username, settings, s.now()); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("record parameter change: %w", err)
		}
		l.Warn("no history entry, parameter change not recorded",
			slog.String("username", username),
			slog.String("mode", mode.String()),
		)
	}

	l.Info("mode settings updated",
		slog.String("username", username),
		slog.String("mode", mode.String()),
	)
	return nil
}

// GetModeSettings returns the stored block for mode, which may still be the
// defaults if it was never written.
func (s *AccountService) GetModeSettings(ctx context.Context, username string, mode domain.Mode) (domain.Settings, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	records, err := s.Store.Records().Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	i := domain.FindUser(records, username)
	if i < 0 {
		return nil, ErrUserNotFound
	}
	return records[i].Modes.Get(mode)
}

// ReconcileHistory opens a history entry for every account that lacks one.
// It returns how many entries were created.
func (s *AccountService) ReconcileHistory(ctx context.Context) (int, error) {
	l := slogx.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.Store.Records().Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load records: %w", err)
	}
	entries, err := s.Store.History().Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}

	created := 0
	for _, u := range records {
		if domain.FindHistory(entries, u.Username) >= 0 {
			continue
		}

		err := s.Store.History().AppendRegistration(ctx, u.Username, u.SerialNumber, s.now())
		if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return created, fmt.Errorf("open history for %q: %w", u.Username, err)
		}

		l.Warn("history entry was missing, recreated", slog.String("username", u.Username))
		created++
	}
	return created, nil
}

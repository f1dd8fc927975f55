package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/aussiebroadwan/dcm/pkg/slogx"
)

var (
	parameterLogHeader = []string{"changeDate", "mode", "settings"}
	loginHistoryHeader = []string{"loginDate"}
)

// safeFileName reports whether name can be joined onto a directory without
// leaving it.
func safeFileName(name string) bool {
	return name != "" &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.Contains(name, "..") &&
		filepath.Base(name) == name
}

func ParameterLogFileName(username string) string { return username + "_parameter_log.csv" }
func LoginHistoryFileName(username string) string { return username + "_login_history.csv" }

// ExportParameterChanges writes the user's parameter changes, oldest first,
// as <username>_parameter_log.csv in the export directory and returns the
// directory. The settings column holds each block as a JSON object.
func (s *AccountService) ExportParameterChanges(ctx context.Context, username string) (string, error) {
	entry, err := s.historyFor(ctx, username)
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(entry.ParameterChanges))
	for _, c := range entry.ParameterChanges {
		settings, err := json.Marshal(c.Settings)
		if err != nil {
			return "", fmt.Errorf("encode settings: %w", err)
		}
		rows = append(rows, []string{formatExportTime(c.ChangeDate), c.Mode.String(), string(settings)})
	}

	return s.export(ctx, ParameterLogFileName(username), parameterLogHeader, rows)
}

// ExportLoginHistory writes the user's logins as <username>_login_history.csv.
func (s *AccountService) ExportLoginHistory(ctx context.Context, username string) (string, error) {
	entry, err := s.historyFor(ctx, username)
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(entry.LoginHistory))
	for _, ev := range entry.LoginHistory {
		rows = append(rows, []string{formatExportTime(ev.LoginDate)})
	}

	return s.export(ctx, LoginHistoryFileName(username), loginHistoryHeader, rows)
}

func (s *AccountService) historyFor(ctx context.Context, username string) (domain.HistoryEntry, error) {
	if username == "" {
		return domain.HistoryEntry{}, ErrUserNotFound
	}

	entry, err := s.Store.History().Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.HistoryEntry{}, ErrUserNotFound
	}
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("load history: %w", err)
	}
	return entry, nil
}

// export writes header and rows to name inside ExportDir. An empty rows slice
// still produces a file with the header line.
func (s *AccountService) export(ctx context.Context, name string, header []string, rows [][]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Usernames stored before registration checked them are refused, not rewritten.
	if !safeFileName(name) {
		return "", fmt.Errorf("%w: export file name %q", ErrInvalidRequest, name)
	}

	dir := s.ExportDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	slogx.FromContext(ctx).Info("history exported",
		slog.String("file", path),
		slog.Int("rows", len(rows)),
	)
	return dir, nil
}

func formatExportTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
)

type historyRepo struct {
	db *sql.DB
}

func (r *historyRepo) Load(ctx context.Context) ([]domain.HistoryEntry, error) {
	return r.query(ctx, "")
}

func (r *historyRepo) Get(ctx context.Context, username string) (domain.HistoryEntry, error) {
	entries, err := r.query(ctx, username)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if len(entries) == 0 {
		return domain.HistoryEntry{}, store.ErrNotFound
	}
	return entries[0], nil
}

func (r *historyRepo) AppendRegistration(ctx context.Context, username, serialNumber string, at time.Time) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := entryID(ctx, tx, username)
		switch {
		case err == nil:
			return store.ErrAlreadyExists
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO history_entries (username, serial_number, registration_date)
			VALUES (?, ?, ?)`, username, serialNumber, formatTime(at))
		return err
	})
}

func (r *historyRepo) AppendLogin(ctx context.Context, username string, at time.Time) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		id, err := entryID(ctx, tx, username)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO login_events (entry_id, login_date) VALUES (?, ?)`, id, formatTime(at))
		return err
	})
}

func (r *historyRepo) AppendParameterChange(
	ctx context.Context,
	username string,
	settings domain.Settings,
	at time.Time,
) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		id, err := entryID(ctx, tx, username)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO parameter_changes (entry_id, change_date, mode, settings)
			VALUES (?, ?, ?, ?)`, id, formatTime(at), string(settings.Mode()), string(data))
		return err
	})
}

func entryID(ctx context.Context, tx *sql.Tx, username string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM history_entries WHERE username = ?`, username).Scan(&id)
	return id, mapNotFound(err)
}

// query loads entries with their events. An empty username loads everything.
func (r *historyRepo) query(ctx context.Context, username string) ([]domain.HistoryEntry, error) {
	entries := []domain.HistoryEntry{}
	index := map[int64]int{}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, username, serial_number, registration_date
			FROM history_entries
			WHERE ? = '' OR username = ?
			ORDER BY id`, username, username)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				id  int64
				e   domain.HistoryEntry
				reg string
			)
			if err := rows.Scan(&id, &e.Username, &e.SerialNumber, &reg); err != nil {
				_ = rows.Close()
				return err
			}
			if e.RegistrationDate, err = parseTime(reg); err != nil {
				_ = rows.Close()
				return err
			}
			e.LoginHistory = []domain.LoginEvent{}
			e.ParameterChanges = []domain.ParameterChange{}
			index[id] = len(entries)
			entries = append(entries, e)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		if err := loadLogins(ctx, tx, index, entries); err != nil {
			return err
		}
		return loadChanges(ctx, tx, index, entries)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func loadLogins(ctx context.Context, tx *sql.Tx, index map[int64]int, entries []domain.HistoryEntry) error {
	rows, err := tx.QueryContext(ctx, `SELECT entry_id, login_date FROM login_events ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry int64
			raw   string
		)
		if err := rows.Scan(&entry, &raw); err != nil {
			return err
		}
		i, ok := index[entry]
		if !ok {
			continue
		}
		at, err := parseTime(raw)
		if err != nil {
			return err
		}
		entries[i].LoginHistory = append(entries[i].LoginHistory, domain.LoginEvent{LoginDate: at})
	}
	return rows.Err()
}

func loadChanges(ctx context.Context, tx *sql.Tx, index map[int64]int, entries []domain.HistoryEntry) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT entry_id, change_date, mode, settings FROM parameter_changes ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry           int64
			raw, mode, blob string
		)
		if err := rows.Scan(&entry, &raw, &mode, &blob); err != nil {
			return err
		}
		i, ok := index[entry]
		if !ok {
			continue
		}
		at, err := parseTime(raw)
		if err != nil {
			return err
		}
		settings, err := domain.DecodeSettings(domain.Mode(mode), []byte(blob))
		if err != nil {
			return fmt.Errorf("decode change of %q: %w", entries[i].Username, err)
		}
		entries[i].ParameterChanges = append(entries[i].ParameterChanges, domain.ParameterChange{
			ChangeDate: at,
			Mode:       domain.Mode(mode),
			Settings:   settings,
		})
	}
	return rows.Err()
}

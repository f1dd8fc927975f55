package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
)

type recordsRepo struct {
	db *sql.DB
}

func (r *recordsRepo) Load(ctx context.Context) ([]domain.UserRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT username, password_hash, serial_number, modes, last_used_mode
		FROM users
		ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.UserRecord{}
	for rows.Next() {
		var (
			u     domain.UserRecord
			modes string
			last  string
		)
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.SerialNumber, &modes, &last); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(modes), &u.Modes); err != nil {
			return nil, fmt.Errorf("decode modes of %q: %w", u.Username, err)
		}
		u.LastUsedMode = domain.Mode(last)
		records = append(records, u)
	}
	return records, rows.Err()
}

// SaveAll swaps the whole table in one transaction, preserving slice order.
func (r *recordsRepo) SaveAll(ctx context.Context, records []domain.UserRecord) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO users (position, username, password_hash, serial_number, modes, last_used_mode)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, u := range records {
			modes, err := json.Marshal(u.Modes)
			if err != nil {
				return fmt.Errorf("encode modes of %q: %w", u.Username, err)
			}
			if _, err := stmt.ExecContext(ctx, i, u.Username, u.PasswordHash, u.SerialNumber,
				string(modes), string(u.LastUsedMode)); err != nil {
				return fmt.Errorf("insert %q: %w", u.Username, err)
			}
		}
		return nil
	})
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (jsonfile,
// sqlite) implement it and hand out the two independent repositories: the
// account records and the audit history. Neither repository knows about the
// other; keeping them consistent is the service's job.
type Store interface {
	Records() Records
	History() History

	// ApplyMigrations prepares the backing storage: tables for sqlite, empty
	// array files for jsonfile. Safe to call on every start.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing files or database are reachable.
	Ping(ctx context.Context) error
}

// Records persists the full set of user accounts. There is no indexing:
// callers load everything and scan.
type Records interface {
	// Load returns every stored record. A missing backing file is created
	// empty first.
	Load(ctx context.Context) ([]domain.UserRecord, error)

	// SaveAll replaces the stored set with records. Last writer wins.
	SaveAll(ctx context.Context, records []domain.UserRecord) error
}

// History persists the per-user audit trail.
type History interface {
	// Load returns every history entry.
	Load(ctx context.Context) ([]domain.HistoryEntry, error)

	// Get returns the entry for username or ErrNotFound.
	Get(ctx context.Context, username string) (domain.HistoryEntry, error)

	// AppendRegistration creates an empty entry for a newly registered user.
	// Returns ErrAlreadyExists if one is already present.
	AppendRegistration(ctx context.Context, username, serialNumber string, at time.Time) error

	// AppendLogin records a successful login. Returns ErrNotFound when the
	// user has no entry; nothing is written in that case.
	AppendLogin(ctx context.Context, username string, at time.Time) error

	// AppendParameterChange records a copy of the settings written for a mode.
	// Returns ErrNotFound when the user has no entry.
	AppendParameterChange(ctx context.Context, username string, settings domain.Settings, at time.Time) error
}

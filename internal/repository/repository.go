// Package repository persists build-cache records and decides which
// (scenario, leak config) pairs need re-simulation.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openwater-labs/aquanet/internal/domain"
)

// SQLStore implements domain.CacheStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a cache store based on configuration. collectionRoot is used
// to place the default SQLite file next to the collection it describes.
func New(cfg domain.CacheStoreConfig, collectionRoot string) (domain.CacheStore, error) {
	var db *sql.DB
	var err error

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		db, err = openSQLite(cfg, collectionRoot)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported cache store driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	store := &SQLStore{db: db, driver: driver}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves the record for a pair, or domain.ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, scenario, leakConfig string) (*domain.CacheRecord, error) {
	query := `
		SELECT scenario, leak_config, fingerprint, generated_at, run_id
		FROM cache_records
		WHERE scenario = ? AND leak_config = ?
	`

	var rec domain.CacheRecord
	err := s.db.QueryRowContext(ctx, s.rebind(query), scenario, leakConfig).Scan(
		&rec.Scenario, &rec.LeakConfig, &rec.Fingerprint, &rec.GeneratedAt, &rec.RunID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("cache record for %s.%s", scenario, leakConfig)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put inserts or replaces the record for a pair.
func (s *SQLStore) Put(ctx context.Context, rec *domain.CacheRecord) error {
	query := `
		INSERT INTO cache_records (scenario, leak_config, fingerprint, generated_at, run_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scenario, leak_config) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			generated_at = excluded.generated_at,
			run_id = excluded.run_id
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		rec.Scenario, rec.LeakConfig, rec.Fingerprint, rec.GeneratedAt, rec.RunID,
	)
	return err
}

// Delete removes the record for a pair. Deleting a missing record is not
// an error; a forced rebuild may race a never-generated pair.
func (s *SQLStore) Delete(ctx context.Context, scenario, leakConfig string) error {
	query := `DELETE FROM cache_records WHERE scenario = ? AND leak_config = ?`
	_, err := s.db.ExecContext(ctx, s.rebind(query), scenario, leakConfig)
	return err
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

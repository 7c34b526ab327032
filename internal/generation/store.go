package generation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"nixgen/internal/config"
	"nixgen/internal/services"
)

// Store is the single writer of durable generation state. It owns the sqlite
// registry, the per-generation closure links, and the live profile symlinks.
type Store struct {
	db          *sql.DB
	path        string
	stateDir    string
	profilesDir string
}

// Open initializes or connects to the registry database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.RegistryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:          db,
		path:        dbPath,
		stateDir:    cfg.Paths.StateDir,
		profilesDir: cfg.Paths.ProfilesDir,
	}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`)
	var version int
	err := row.Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("registry schema version %d does not match expected %d; remove %s to rebuild", version, schemaVersion, s.path)
	}
	return nil
}

// Append allocates the next generation number for the profile and records a
// pending entry. Callers must not proceed to activation when it fails.
func (s *Store) Append(ctx context.Context, profile, closurePath, specialisation string) (*Generation, error) {
	profile = strings.TrimSpace(profile)
	closurePath = strings.TrimSpace(closurePath)
	if profile == "" {
		return nil, services.Wrap(services.ErrRegistryWrite, "registry", "append", "profile required", nil)
	}
	if closurePath == "" {
		return nil, services.Wrap(services.ErrRegistryWrite, "registry", "append", "closure path required", nil)
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrRegistryWrite, "registry", "append", "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (name, last_number) VALUES (?, 1)
         ON CONFLICT(name) DO UPDATE SET last_number = last_number + 1`,
		profile,
	); err != nil {
		return nil, services.Wrap(services.ErrRegistryWrite, "registry", "append", "allocate number", err)
	}

	var number uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT last_number FROM profiles WHERE name = ?`, profile,
	).Scan(&number); err != nil {
		return nil, services.Wrap(services.ErrRegistryWrite, "registry", "append", "read allocated number", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generations (profile, number, closure_path, specialisation, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		profile, number, closurePath, specialisation, StatusPending, now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, services.Wrap(services.ErrRegistryWrite, "registry", "append", "insert generation", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, services.Wrap(services.ErrRegistryWrite, "registry", "append", "commit", err)
	}

	gen := &Generation{
		Profile:        profile,
		Number:         number,
		ClosurePath:    closurePath,
		Specialisation: specialisation,
		Status:         StatusPending,
		CreatedAt:      now,
	}
	if err := s.writeGenerationLink(gen); err != nil {
		_ = s.MarkFailed(ctx, profile, number)
		return nil, err
	}
	return gen, nil
}

// MarkActive atomically demotes the current active generation to superseded
// and promotes the given one. Readers observe either the old or the new
// active entry, never both or neither. Calling it for the generation that is
// already active is a no-op.
func (s *Store) MarkActive(ctx context.Context, profile string, number uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrRegistryWrite, "registry", "mark active", "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status Status
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM generations WHERE profile = ? AND number = ?`,
		profile, number,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrRegistryWrite, "registry", "mark active",
			fmt.Sprintf("generation %d not found for profile %s", number, profile), nil)
	}
	if err != nil {
		return services.Wrap(services.ErrRegistryWrite, "registry", "mark active", "read generation", err)
	}
	if status == StatusActive {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE generations SET status = ? WHERE profile = ? AND status = ?`,
		StatusSuperseded, profile, StatusActive,
	); err != nil {
		return services.Wrap(services.ErrRegistryWrite, "registry", "mark active", "demote previous", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE generations SET status = ? WHERE profile = ? AND number = ?`,
		StatusActive, profile, number,
	); err != nil {
		return services.Wrap(services.ErrRegistryWrite, "registry", "mark active", "promote target", err)
	}
	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrRegistryWrite, "registry", "mark active", "commit", err)
	}
	return nil
}

// MarkFailed records that a generation's activation did not complete.
func (s *Store) MarkFailed(ctx context.Context, profile string, number uint64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE generations SET status = ? WHERE profile = ? AND number = ?`,
		StatusFailed, profile, number,
	); err != nil {
		return services.Wrap(services.ErrRegistryWrite, "registry", "mark failed", "update status", err)
	}
	return nil
}

// Get fetches one generation, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, profile string, number uint64) (*Generation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT profile, number, closure_path, specialisation, status, created_at
         FROM generations WHERE profile = ? AND number = ?`,
		profile, number,
	)
	gen, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

// Active returns the profile's active generation, or nil when none exists.
func (s *Store) Active(ctx context.Context, profile string) (*Generation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT profile, number, closure_path, specialisation, status, created_at
         FROM generations WHERE profile = ? AND status = ?`,
		profile, StatusActive,
	)
	gen, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active generation: %w", err)
	}
	return gen, nil
}

// List returns the profile's generations, newest first.
func (s *Store) List(ctx context.Context, profile string) ([]*Generation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT profile, number, closure_path, specialisation, status, created_at
         FROM generations WHERE profile = ? ORDER BY number DESC`,
		profile,
	)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var result []*Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		result = append(result, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*Generation, error) {
	var gen Generation
	var createdAt string
	if err := row.Scan(&gen.Profile, &gen.Number, &gen.ClosurePath, &gen.Specialisation, &gen.Status, &createdAt); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	gen.CreatedAt = ts
	return &gen, nil
}

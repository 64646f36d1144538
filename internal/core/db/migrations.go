package db

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/averko/feedmill/migrations"
)

// MigrationStatus reports one migration's applied/pending state.
type MigrationStatus struct {
	ID        string
	Checksum  string
	Applied   bool
	AppliedAt *time.Time
}

// MigrateUp applies all pending migrations in filename order. Checksums of
// already-applied migrations are verified first; an edited migration file
// aborts the run instead of silently diverging from the recorded schema.
func MigrateUp(db *sqlx.DB) error {
	pending, err := loadMigrations(db.DriverName())
	if err != nil {
		return err
	}

	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	if err := verifyChecksums(db, pending); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	applied, err := appliedIDs(db)
	if err != nil {
		return fmt.Errorf("querying applied migrations: %w", err)
	}

	for _, m := range pending {
		if applied[m.ID] {
			continue
		}

		// Execution and recording share a transaction so a failed record
		// never leaves a half-applied migration behind.
		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", m.ID, err)
		}
		if err := execMigration(tx, m); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", m.ID, err)
		}
		if err := recordMigration(tx, m); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", m.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", m.ID, err)
		}
	}

	return nil
}

// MigrateStatus lists every known migration with its applied state.
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	known, err := loadMigrations(db.DriverName())
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(db); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	rows, err := db.Queryx("SELECT migration_id, checksum, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]MigrationStatus)
	for rows.Next() {
		var s MigrationStatus
		var appliedAt time.Time
		if err := rows.Scan(&s.ID, &s.Checksum, &appliedAt); err != nil {
			return nil, err
		}
		s.Applied = true
		s.AppliedAt = &appliedAt
		applied[s.ID] = s
	}

	statuses := make([]MigrationStatus, 0, len(known))
	for _, m := range known {
		if s, ok := applied[m.ID]; ok {
			statuses = append(statuses, s)
			continue
		}
		statuses = append(statuses, MigrationStatus{ID: m.ID, Checksum: m.Checksum})
	}
	return statuses, nil
}

type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// loadMigrations reads the embedded migration set for the active driver.
func loadMigrations(driver string) ([]migration, error) {
	var fsys embed.FS
	var dir string
	switch driver {
	case "sqlite3":
		fsys, dir = migrations.Sqlite, "sqlite"
	case "postgres":
		fsys, dir = migrations.Postgres, "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	var out []migration
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := fsys.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{
			ID:       filepath.Base(path),
			Checksum: fmt.Sprintf("%x", sum),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Filename prefix ordering (0001_..., 0002_...) is the apply order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ensureMigrationsTable creates the tracking table if missing.
func ensureMigrationsTable(db *sqlx.DB) error {
	ts := "TIMESTAMP WITHOUT TIME ZONE"
	if db.DriverName() == "sqlite3" {
		// Declared TIMESTAMP so the driver scans applied_at as time.Time.
		ts = "TIMESTAMP"
	}
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at %s NOT NULL
		)
	`, ts))
	return err
}

// appliedIDs returns the set of already-applied migration IDs.
func appliedIDs(db *sqlx.DB) (map[string]bool, error) {
	rows, err := db.Queryx("SELECT migration_id FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, nil
}

// verifyChecksums compares recorded checksums against the embedded files.
func verifyChecksums(db *sqlx.DB, known []migration) error {
	byID := make(map[string]string, len(known))
	for _, m := range known {
		byID[m.ID] = m.Checksum
	}

	rows, err := db.Queryx("SELECT migration_id, checksum FROM schema_migrations")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, recorded string
		if err := rows.Scan(&id, &recorded); err != nil {
			return err
		}
		expected, ok := byID[id]
		if !ok {
			return fmt.Errorf("migration %s recorded in database but missing from embedded files", id)
		}
		if recorded != expected {
			return fmt.Errorf("checksum mismatch for migration %s", id)
		}
	}
	return nil
}

// execMigration runs one migration's statements.
// Statements are split on semicolons: lib/pq rejects multi-statement Exec.
func execMigration(tx *sqlx.Tx, m migration) error {
	for _, raw := range strings.Split(m.SQL, ";") {
		stmt := stripComments(raw)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

// stripComments drops -- comment lines so a commented statement still runs.
func stripComments(stmt string) string {
	var kept []string
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// recordMigration appends the audit row for an applied migration.
func recordMigration(tx *sqlx.Tx, m migration) error {
	now := time.Now().UTC()
	if tx.DriverName() == "sqlite3" {
		_, err := tx.Exec(
			"INSERT INTO schema_migrations (migration_id, checksum, applied_at) VALUES (?, ?, ?)",
			m.ID, m.Checksum, now,
		)
		return err
	}
	_, err := tx.Exec(
		"INSERT INTO schema_migrations (migration_id, checksum, applied_at) VALUES ($1, $2, $3)",
		m.ID, m.Checksum, now,
	)
	return err
}

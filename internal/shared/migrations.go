package shared

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var kvSchema embed.FS

// Migration is one versioned change to the kv_store schema.
//
// Files are named NNNN_name_up.sql and NNNN_name_down.sql.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationState pairs a migration with when it was applied. AppliedAt is nil for pending ones.
type MigrationState struct {
	Version   int        `json:"version"`
	Name      string     `json:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// Migrator applies and reverts schema migrations on a SQLite database.
type Migrator struct {
	db     *sql.DB
	source fs.FS
}

// NewMigrator returns a Migrator over the embedded kv_store schema.
func NewMigrator(db *sql.DB) *Migrator {
	sub, _ := fs.Sub(kvSchema, "sql")
	return &Migrator{db: db, source: sub}
}

// RunMigrations applies every pending kv_store migration.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := NewMigrator(db).Up(ctx)
	return err
}

func parseMigrationFile(name string) (version int, label, direction string, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return 0, "", "", false
	}
	switch {
	case strings.HasSuffix(base, "_up"):
		base, direction = strings.TrimSuffix(base, "_up"), "up"
	case strings.HasSuffix(base, "_down"):
		base, direction = strings.TrimSuffix(base, "_down"), "down"
	default:
		return 0, "", "", false
	}

	num, label, found := strings.Cut(base, "_")
	if !found {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(num)
	if err != nil {
		return 0, "", "", false
	}
	return version, label, direction, true
}

// Migrations lists the known migrations by ascending version.
func (m *Migrator) Migrations() ([]Migration, error) {
	names, err := fs.Glob(m.source, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, name := range names {
		version, label, direction, ok := parseMigrationFile(name)
		if !ok {
			continue
		}
		content, err := fs.ReadFile(m.source, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version, Name: label}
			byVersion[version] = mig
		}
		if direction == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			return nil, fmt.Errorf("%w: migration %04d_%s needs both up and down files", ErrInvalidConfig, mig.Version, mig.Name)
		}
		out = append(out, *mig)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	out := map[int]time.Time{}
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan schema_migrations: %w", err)
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Up applies pending migrations in order and returns the ones it applied.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	migrations, err := m.Migrations()
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, mig := range migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		err := m.exec(ctx, mig.Up, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, mig.Version, mig.Name)
		if err != nil {
			return ran, fmt.Errorf("failed to apply migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		ran = append(ran, mig)
	}
	return ran, nil
}

// Down reverts up to steps applied migrations, newest first, and returns the ones it reverted.
func (m *Migrator) Down(ctx context.Context, steps int) ([]Migration, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: rollback steps must be at least 1", ErrInvalidArgument)
	}

	migrations, err := m.Migrations()
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var reverted []Migration
	for _, mig := range slices.Backward(migrations) {
		if len(reverted) == steps {
			break
		}
		if _, ok := done[mig.Version]; !ok {
			continue
		}
		err := m.exec(ctx, mig.Down, `DELETE FROM schema_migrations WHERE version = ?`, mig.Version)
		if err != nil {
			return reverted, fmt.Errorf("failed to revert migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		reverted = append(reverted, mig)
	}
	return reverted, nil
}

// Status lists every known migration with its applied time.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	migrations, err := m.Migrations()
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationState, len(migrations))
	for i, mig := range migrations {
		out[i] = MigrationState{Version: mig.Version, Name: mig.Name}
		if at, ok := done[mig.Version]; ok {
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

// exec runs script and the bookkeeping statement in one transaction.
func (m *Migrator) exec(ctx context.Context, script, record string, args ...any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\nstatement: %s", err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// statements splits script on semicolons after dropping -- comments.
func statements(script string) []string {
	var kept []string
	for line := range strings.Lines(script) {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}

	var out []string
	for stmt := range strings.SplitSeq(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

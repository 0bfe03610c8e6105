package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/pulse/internal/formatter"

	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a default config when none exists, then opens the store and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			r.writePlain("✓ Config written to %s\n", configPath)
			if config, err := shared.LoadConfig(configPath); err == nil {
				r.config = config
			}
		}
	}

	storage := r.config.Storage
	r.logger.Info("initializing store", "driver", storage.Driver, "path", storage.Path)

	if err := r.ensure(ctx); err != nil {
		return err
	}

	switch storage.Driver {
	case "", "sqlite", "sqlite3":
		r.writePlain("✓ Database ready at %s\n", storage.Path)
	default:
		r.writePlain("✓ %s store ready\n", storage.Driver)
	}

	if storage.Key() == "" {
		r.writePlain("Credentials are sealed with a generated key kept in the store. Set PULSE_ENCRYPTION_KEY to supply your own.\n")
	}
	r.writePlain("Next: pulse auth credentials --client-id ... --client-secret ...\n")
	return nil
}

// openMigrator opens the configured SQLite database without applying pending migrations.
func (r *Runner) openMigrator() (*shared.Migrator, func(), error) {
	storage := r.config.Storage
	switch strings.ToLower(storage.Driver) {
	case "", "sqlite", "sqlite3":
	default:
		return nil, nil, fmt.Errorf("%w: migrations only apply to the sqlite driver, not %q", shared.ErrInvalidArgument, storage.Driver)
	}

	db, err := shared.NewDatabase(storage.Path)
	if err != nil {
		return nil, nil, err
	}
	return shared.NewMigrator(db), func() { db.Close() }, nil
}

// SetupRollback reverts the newest applied migrations.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	m, closeDB, err := r.openMigrator()
	if err != nil {
		return err
	}
	defer closeDB()

	steps := cmd.Int("steps")
	r.logger.Info("rolling back migrations", "path", r.config.Storage.Path, "steps", steps)

	reverted, err := m.Down(ctx, steps)
	for _, mig := range reverted {
		r.writePlain("✓ Reverted %04d_%s\n", mig.Version, mig.Name)
	}
	if err != nil {
		return err
	}
	if len(reverted) == 0 {
		r.writePlain("No applied migrations to revert\n")
	}
	return nil
}

// SetupStatus lists each migration and when it was applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	m, closeDB, err := r.openMigrator()
	if err != nil {
		return err
	}
	defer closeDB()

	states, err := m.Status(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(states, cmd.Bool("pretty"))
	}

	for _, s := range states {
		applied := formatter.Styles.Help.Render("pending")
		if s.AppliedAt != nil {
			applied = s.AppliedAt.Local().Format(time.DateTime)
		}
		r.writePlain("%04d  %-24s %s\n", s.Version, s.Name, applied)
	}
	return nil
}

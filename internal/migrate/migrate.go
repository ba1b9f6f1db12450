// Package migrate applies the embedded goose migrations to the SQL storage
// backends.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations
var embedMigrations embed.FS

const tableName = "schema_migrations"

// Runner applies migrations for one database.
type Runner struct {
	db       *sql.DB
	provider *goose.Provider
	log      *zap.Logger
}

func dialect(driver string) (database.Dialect, string, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return database.DialectSQLite3, "migrations/sqlite", nil
	case "postgres", "pgx", "postgrespool":
		return database.DialectPostgres, "migrations/postgres", nil
	}
	return "", "", fmt.Errorf("unsupported driver for migrations: %s", driver)
}

// openDB reuses the gorm dialectors so the binary registers a single sqlite
// driver.
func openDB(driver, dsn string) (*sql.DB, error) {
	var d gorm.Dialector
	switch driver {
	case "postgres", "pgx", "postgrespool":
		d = postgres.Open(dsn)
	default:
		if dsn == "" {
			dsn = "tariffmanager.db"
		}
		d = sqlite.Open(dsn)
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	return db.DB()
}

func New(driver, dsn string, log *zap.Logger) (*Runner, error) {
	dia, dir, err := dialect(driver)
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return nil, err
	}
	store, err := database.NewStore(dia, tableName)
	if err != nil {
		return nil, err
	}
	db, err := openDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	p, err := goose.NewProvider("", db, fsys, goose.WithStore(store))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Runner{db: db, provider: p, log: log.With(zap.String("driver", driver))}, nil
}

func (r *Runner) Close() error { return r.db.Close() }

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	for _, res := range results {
		r.log.Info("migration applied",
			zap.Int64("version", res.Source.Version),
			zap.String("path", res.Source.Path),
			zap.Duration("duration", res.Duration),
		)
	}
	return err
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	res, err := r.provider.Down(ctx)
	if res != nil {
		r.log.Info("migration rolled back", zap.Int64("version", res.Source.Version))
	}
	return err
}

// MigrationState is the applied state of one migration file.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

func (r *Runner) Status(ctx context.Context) ([]MigrationState, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

func Up(ctx context.Context, driver, dsn string, log *zap.Logger) error {
	r, err := New(driver, dsn, log)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Up(ctx)
}

func Down(ctx context.Context, driver, dsn string, log *zap.Logger) error {
	r, err := New(driver, dsn, log)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Down(ctx)
}

// kex/database/database.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"kex/utils"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors surfaced to handlers.
var (
	ErrStoryNotFound = errors.New("story not found")
	ErrTagNotFound   = errors.New("tag not found")
)

// StoreService is the central struct for all database operations.
type StoreService struct {
	DB      *sqlx.DB
	logger  *slog.Logger
	dialect Dialect
}

// InitStore connects to the first reachable candidate URL, applies the
// base schema and any pending migrations, and returns a ready store.
// This replaces lazily-checked init flags: it runs exactly once, before
// the server accepts requests.
func InitStore(candidates []string, logger *slog.Logger) (*StoreService, error) {
	db, dialect, err := Connect(candidates, logger)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema(dialect)); err != nil {
		return nil, fmt.Errorf("failed to execute base schema: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	logger.Info("Database initialized", "dialect", dialect.String())

	return &StoreService{
		DB:      db,
		logger:  logger,
		dialect: dialect,
	}, nil
}

// Dialect reports which backend the store is connected to.
func (s *StoreService) Dialect() Dialect { return s.dialect }

// runMigrations applies all un-applied migrations.
func runMigrations(db *sqlx.DB, logger *slog.Logger) error {
	var latestVersion uint
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&latestVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("could not get db version: %w", err)
	}

	logger.Info("Current database schema version", "version", latestVersion)

	for _, m := range allMigrations {
		if m.Version > latestVersion {
			logger.Info("Applying migration", "version", m.Version)
			tx, err := db.Beginx()
			if err != nil {
				return err
			}

			if _, err := tx.Exec(m.Query); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to apply migration v%d: %w", m.Version, err)
			}
			if _, err := tx.Exec(db.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"), m.Version, utils.Timestamp()); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration record", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
			}

			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
			}
			logger.Info("Successfully applied migration", "version", m.Version)
		}
	}
	return nil
}

// insertReturningID runs an INSERT and reports the generated row id,
// papering over the RETURNING / LastInsertId split between dialects.
func (s *StoreService) insertReturningID(tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	if s.dialect == DialectPostgres {
		var id int64
		if err := tx.QueryRow(tx.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := tx.Exec(tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// kex/database/connect.go
package database

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite driver
)

// Dialect identifies which SQL backend a store is talking to.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor picks the dialect from a connection string.
func DialectFor(url string) Dialect {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

func driverFor(d Dialect) string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// Candidates builds the connection fallback list: an explicit override
// wins outright; otherwise the internal network URL (when the host
// environment provides one) is tried before the external URL.
func Candidates(custom, internal, external string) []string {
	if custom != "" {
		return []string{custom}
	}
	var urls []string
	if internal != "" {
		urls = append(urls, internal)
	}
	if external != "" {
		urls = append(urls, external)
	}
	return urls
}

var credentialPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)

// RedactURL masks the password portion of a connection URL for logging.
func RedactURL(url string) string {
	return credentialPattern.ReplaceAllString(url, "://$1:********@")
}

// Connect walks the candidate list and returns the first database that
// answers a ping. It fails only when every candidate is unreachable.
func Connect(candidates []string, logger *slog.Logger) (*sqlx.DB, Dialect, error) {
	var lastErr error
	for _, url := range candidates {
		if url == "" {
			continue
		}
		dialect := DialectFor(url)
		logger.Info("Trying database", "url", RedactURL(url), "dialect", dialect.String())

		db, err := sqlx.Connect(driverFor(dialect), url)
		if err != nil {
			logger.Warn("Database candidate unreachable", "url", RedactURL(url), "error", err)
			lastErr = err
			continue
		}
		logger.Info("Connected to database", "url", RedactURL(url))
		return db, dialect, nil
	}
	if lastErr != nil {
		return nil, DialectSQLite, fmt.Errorf("no database reachable: %w", lastErr)
	}
	return nil, DialectSQLite, fmt.Errorf("no database configured")
}

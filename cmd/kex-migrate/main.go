// kex-migrate copies an existing SQLite story database into Postgres,
// preserving row ids so image paths and bookmarked links keep working.
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"kex/database"
	"kex/models"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

var (
	sqlitePath  string
	postgresURL string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kex-migrate",
		Short: "One-shot SQLite to Postgres migration for the kex story board",
		Long: `Copies stories, tags and their links from a SQLite database file
into a Postgres database. The target tables are created if missing and
truncated before the copy, and sequences are reset so new inserts
continue after the highest copied id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration()
		},
	}
	rootCmd.Flags().StringVar(&sqlitePath, "sqlite", "./stories.db", "path to the source SQLite database file")
	rootCmd.Flags().StringVar(&postgresURL, "postgres", "", "target Postgres connection URL (required)")
	if err := rootCmd.MarkFlagRequired("postgres"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigration() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	src, err := sqlx.Connect("sqlite3", sqlitePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite source %q: %w", sqlitePath, err)
	}
	defer src.Close()

	dst, err := sqlx.Connect("pgx", postgresURL)
	if err != nil {
		return fmt.Errorf("could not connect to postgres target %s: %w", database.RedactURL(postgresURL), err)
	}
	defer dst.Close()

	if _, err := dst.Exec(database.Schema(database.DialectPostgres)); err != nil {
		return fmt.Errorf("could not create target schema: %w", err)
	}

	var stories []models.Story
	if err := src.Select(&stories, "SELECT id, name, title, body, likes, created_at, updated_at, image_path, is_approved FROM stories ORDER BY id"); err != nil {
		return fmt.Errorf("could not read source stories: %w", err)
	}
	var tags []models.Tag
	if err := src.Select(&tags, "SELECT id, name, created_at FROM tags ORDER BY id"); err != nil {
		return fmt.Errorf("could not read source tags: %w", err)
	}
	type storyTag struct {
		StoryID int64 `db:"story_id"`
		TagID   int64 `db:"tag_id"`
	}
	var links []storyTag
	if err := src.Select(&links, "SELECT story_id, tag_id FROM story_tags ORDER BY story_id, tag_id"); err != nil {
		return fmt.Errorf("could not read source story_tags: %w", err)
	}

	logger.Info("Source database read", "stories", len(stories), "tags", len(tags), "links", len(links))

	tx, err := dst.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			logger.Error("Failed to rollback migration transaction", "error", rerr)
		}
	}()

	if _, err := tx.Exec("TRUNCATE story_tags, tags, stories RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("could not truncate target tables: %w", err)
	}

	// Ids are inserted explicitly so cross-table references survive.
	for _, s := range stories {
		approved := 0
		if s.IsApproved {
			approved = 1
		}
		_, err := tx.Exec(tx.Rebind(
			"INSERT INTO stories (id, name, title, body, likes, created_at, updated_at, image_path, is_approved) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
			s.ID, s.Name, s.Title, s.Body, s.Likes, s.CreatedAt, s.UpdatedAt, s.ImagePath, approved)
		if err != nil {
			return fmt.Errorf("could not copy story %d: %w", s.ID, err)
		}
	}
	for _, t := range tags {
		_, err := tx.Exec(tx.Rebind("INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)"), t.ID, t.Name, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("could not copy tag %d: %w", t.ID, err)
		}
	}
	for _, l := range links {
		_, err := tx.Exec(tx.Rebind("INSERT INTO story_tags (story_id, tag_id) VALUES (?, ?)"), l.StoryID, l.TagID)
		if err != nil {
			return fmt.Errorf("could not copy link %d/%d: %w", l.StoryID, l.TagID, err)
		}
	}

	if _, err := tx.Exec("SELECT setval('stories_id_seq', COALESCE((SELECT MAX(id) FROM stories), 1), true)"); err != nil {
		return fmt.Errorf("could not reset stories sequence: %w", err)
	}
	if _, err := tx.Exec("SELECT setval('tags_id_seq', COALESCE((SELECT MAX(id) FROM tags), 1), true)"); err != nil {
		return fmt.Errorf("could not reset tags sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit migration: %w", err)
	}

	logger.Info("Migration complete", "stories", len(stories), "tags", len(tags), "links", len(links))
	return nil
}

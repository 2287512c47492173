// kex/database/tags.go
package database

import (
	"database/sql"
	"strconv"

	"kex/models"
	"kex/utils"

	"github.com/jmoiron/sqlx"
)

// AllTags returns every tag, ordered case-insensitively for display.
func (s *StoreService) AllTags() ([]models.Tag, error) {
	var tags []models.Tag
	err := s.DB.Select(&tags, "SELECT id, name, created_at FROM tags ORDER BY LOWER(name)")
	return tags, err
}

// TagsWithCounts returns tags in use on approved stories, for the public
// sidebar. Tags attached only to pending stories stay hidden.
func (s *StoreService) TagsWithCounts() ([]models.TagUsage, error) {
	var tags []models.TagUsage
	err := s.DB.Select(&tags, `
		SELECT t.id, t.name, COUNT(DISTINCT st.story_id) AS story_count
		FROM tags t
		JOIN story_tags st ON st.tag_id = t.id
		JOIN stories s ON s.id = st.story_id AND s.is_approved = 1
		GROUP BY t.id, t.name
		ORDER BY LOWER(t.name)`)
	return tags, err
}

// TagsAdminOverview returns every tag with its total story count,
// including pending stories.
func (s *StoreService) TagsAdminOverview() ([]models.TagUsage, error) {
	var tags []models.TagUsage
	err := s.DB.Select(&tags, `
		SELECT t.id, t.name, COUNT(DISTINCT st.story_id) AS story_count
		FROM tags t
		LEFT JOIN story_tags st ON st.tag_id = t.id
		GROUP BY t.id, t.name
		ORDER BY LOWER(t.name)`)
	return tags, err
}

// ensureTagIDs resolves a mix of selected tag id strings and new tag
// names into a deduplicated id list, creating tag rows for unseen names.
// Non-numeric selected ids are silently dropped. Name matching is exact
// and case-sensitive.
func (s *StoreService) ensureTagIDs(tx *sqlx.Tx, selectedIDs, newNames []string) ([]int64, error) {
	var tagIDs []int64
	for _, raw := range selectedIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		tagIDs = append(tagIDs, id)
	}

	now := utils.Timestamp()
	for _, name := range newNames {
		var id int64
		err := tx.QueryRow(tx.Rebind("SELECT id FROM tags WHERE name = ?"), name).Scan(&id)
		switch err {
		case nil:
			tagIDs = append(tagIDs, id)
			continue
		case sql.ErrNoRows:
			// fall through to insert
		default:
			return nil, err
		}

		id, err = s.insertReturningID(tx, "INSERT INTO tags (name, created_at) VALUES (?, ?)", name, now)
		if err != nil {
			return nil, err
		}
		tagIDs = append(tagIDs, id)
	}

	var unique []int64
	seen := make(map[int64]bool)
	for _, id := range tagIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique, nil
}

// replaceStoryTags swaps a story's entire tag set inside the caller's
// transaction: delete everything, insert the selection.
func replaceStoryTags(tx *sqlx.Tx, storyID int64, tagIDs []int64) error {
	if _, err := tx.Exec(tx.Rebind("DELETE FROM story_tags WHERE story_id = ?"), storyID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(tx.Rebind("INSERT INTO story_tags (story_id, tag_id) VALUES (?, ?)"), storyID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTag removes a tag AND every story that carries it, then the tag
// row itself. This cascade is intentionally destructive and matches the
// admin panel's documented behavior. Returns how many stories went with
// the tag plus their image paths for file cleanup.
func (s *StoreService) DeleteTag(tagID int64) (int, []string, error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			s.logger.Error("Failed to rollback transaction in DeleteTag", "error", rerr)
		}
	}()

	var exists int64
	err = tx.QueryRow(tx.Rebind("SELECT id FROM tags WHERE id = ?"), tagID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, nil, ErrTagNotFound
	}
	if err != nil {
		return 0, nil, err
	}

	rows, err := tx.Query(tx.Rebind(`
		SELECT DISTINCT s.id, s.image_path
		FROM stories s
		JOIN story_tags st ON st.story_id = s.id
		WHERE st.tag_id = ?`), tagID)
	if err != nil {
		return 0, nil, err
	}

	var storyIDs []int64
	var imagePaths []string
	for rows.Next() {
		var id int64
		var imagePath sql.NullString
		if err := rows.Scan(&id, &imagePath); err != nil {
			s.logger.Error("Failed to scan story row in DeleteTag", "error", err)
			continue
		}
		storyIDs = append(storyIDs, id)
		if imagePath.Valid && imagePath.String != "" {
			imagePaths = append(imagePaths, imagePath.String)
		}
	}
	if err := rows.Close(); err != nil {
		s.logger.Error("Failed to close rows in DeleteTag", "error", err)
	}

	for _, storyID := range storyIDs {
		if _, err := tx.Exec(tx.Rebind("DELETE FROM story_tags WHERE story_id = ?"), storyID); err != nil {
			return 0, nil, err
		}
		if _, err := tx.Exec(tx.Rebind("DELETE FROM stories WHERE id = ?"), storyID); err != nil {
			return 0, nil, err
		}
	}
	if _, err := tx.Exec(tx.Rebind("DELETE FROM story_tags WHERE tag_id = ?"), tagID); err != nil {
		return 0, nil, err
	}
	if _, err := tx.Exec(tx.Rebind("DELETE FROM tags WHERE id = ?"), tagID); err != nil {
		return 0, nil, err
	}

	return len(storyIDs), imagePaths, tx.Commit()
}

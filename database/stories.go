// kex/database/stories.go
package database

import (
	"database/sql"
	"strconv"
	"strings"

	"kex/models"
	"kex/utils"

	sq "github.com/Masterminds/squirrel"
)

// StoryFilter describes one listing query. A nil Approved means both
// pending and published stories; Order defaults to likes desc then
// recency, the public feed's default.
type StoryFilter struct {
	StoryID  int64
	Approved *bool
	TagID    int64
	Search   string
	Order    []string
}

// Approved and Pending are ready-made filter values.
func Approved() *bool { v := true; return &v }
func Pending() *bool  { v := false; return &v }

// tagAggregates returns the per-dialect expressions that fold a story's
// tag names and ids into single '||'-separated columns. Tag names are
// validated at parse time to never contain the delimiter.
func (s *StoreService) tagAggregates() (names, ids string) {
	if s.dialect == DialectPostgres {
		return "COALESCE(STRING_AGG(t.name, '||'), '') AS tag_names",
			"COALESCE(STRING_AGG(t.id::text, '||'), '') AS tag_ids"
	}
	return "COALESCE(GROUP_CONCAT(t.name, '||'), '') AS tag_names",
		"COALESCE(GROUP_CONCAT(t.id, '||'), '') AS tag_ids"
}

func (s *StoreService) likeOp() string {
	if s.dialect == DialectPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

// storyRow is the raw shape of one aggregate listing row before the tag
// columns are reassembled.
type storyRow struct {
	models.Story
	TagNames string `db:"tag_names"`
	TagIDs   string `db:"tag_ids"`
}

// LoadStories runs the aggregate listing query and assembles each row's
// tag list. Relevance is zero here; scoring happens in RankStories when
// a search query is present.
func (s *StoreService) LoadStories(filter StoryFilter) ([]models.Story, error) {
	namesExpr, idsExpr := s.tagAggregates()
	builder := sq.Select(
		"s.id", "s.name", "s.title", "s.body", "s.likes",
		"s.created_at", "s.updated_at", "s.image_path", "s.is_approved",
		namesExpr, idsExpr,
	).
		From("stories s").
		LeftJoin("story_tags st ON st.story_id = s.id").
		LeftJoin("tags t ON t.id = st.tag_id").
		GroupBy("s.id")

	if filter.StoryID > 0 {
		builder = builder.Where(sq.Eq{"s.id": filter.StoryID})
	}
	if filter.Approved != nil {
		approved := 0
		if *filter.Approved {
			approved = 1
		}
		builder = builder.Where(sq.Eq{"s.is_approved": approved})
	}
	if filter.TagID > 0 {
		builder = builder.Where(
			"EXISTS (SELECT 1 FROM story_tags st2 WHERE st2.story_id = s.id AND st2.tag_id = ?)",
			filter.TagID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		like := s.likeOp()
		builder = builder.Where(sq.Or{
			sq.Expr("s.title "+like+" ?", pattern),
			sq.Expr("s.body "+like+" ?", pattern),
			sq.Expr("s.name "+like+" ?", pattern),
		})
	}

	order := filter.Order
	if len(order) == 0 {
		order = []string{"s.likes DESC", "s.updated_at DESC"}
	}
	builder = builder.OrderBy(order...)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Queryx(s.DB.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("Failed to close rows in LoadStories", "error", err)
		}
	}()

	var stories []models.Story
	for rows.Next() {
		var row storyRow
		if err := rows.StructScan(&row); err != nil {
			s.logger.Error("Failed to scan story row", "error", err)
			continue
		}
		stories = append(stories, assembleStory(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stories, nil
}

// assembleStory splits the concatenated tag columns back into a tag
// list. Names and ids correlate positionally; blanks and unparsable ids
// are dropped rather than surfaced.
func assembleStory(row storyRow) models.Story {
	story := row.Story
	names := splitNonEmpty(row.TagNames)
	ids := splitNonEmpty(row.TagIDs)

	n := len(names)
	if len(ids) < n {
		n = len(ids)
	}
	for i := 0; i < n; i++ {
		id, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			continue
		}
		story.Tags = append(story.Tags, models.Tag{ID: id, Name: names[i]})
	}
	return story
}

func splitNonEmpty(joined string) []string {
	var out []string
	for _, piece := range strings.Split(joined, "||") {
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// GetStory fetches one story with its tags, regardless of approval.
func (s *StoreService) GetStory(storyID int64) (*models.Story, error) {
	stories, err := s.LoadStories(StoryFilter{StoryID: storyID})
	if err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return nil, ErrStoryNotFound
	}
	return &stories[0], nil
}

// CreateStory inserts a pending story and its full tag set in one
// transaction. New tag names create tag rows as needed.
func (s *StoreService) CreateStory(name, title, body string, imagePath sql.NullString, selectedIDs, newNames []string) (int64, error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return 0, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			s.logger.Error("Failed to rollback transaction in CreateStory", "error", rerr)
		}
	}()

	now := utils.Timestamp()
	storyID, err := s.insertReturningID(tx, `
		INSERT INTO stories (name, title, body, likes, created_at, updated_at, image_path, is_approved)
		VALUES (?, ?, ?, 0, ?, ?, ?, 0)`,
		name, title, body, now, now, imagePath)
	if err != nil {
		return 0, err
	}

	tagIDs, err := s.ensureTagIDs(tx, selectedIDs, newNames)
	if err != nil {
		return 0, err
	}
	if err := replaceStoryTags(tx, storyID, tagIDs); err != nil {
		return 0, err
	}

	return storyID, tx.Commit()
}

// UpdateStory rewrites a story's fields and fully replaces its tag set.
// A valid imagePath swaps the stored photo; an invalid one keeps it.
func (s *StoreService) UpdateStory(storyID int64, name, title, body string, imagePath sql.NullString, selectedIDs, newNames []string) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			s.logger.Error("Failed to rollback transaction in UpdateStory", "error", rerr)
		}
	}()

	var res sql.Result
	if imagePath.Valid {
		res, err = tx.Exec(tx.Rebind(
			"UPDATE stories SET name = ?, title = ?, body = ?, image_path = ?, updated_at = ? WHERE id = ?"),
			name, title, body, imagePath, utils.Timestamp(), storyID)
	} else {
		res, err = tx.Exec(tx.Rebind(
			"UPDATE stories SET name = ?, title = ?, body = ?, updated_at = ? WHERE id = ?"),
			name, title, body, utils.Timestamp(), storyID)
	}
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrStoryNotFound
	}

	tagIDs, err := s.ensureTagIDs(tx, selectedIDs, newNames)
	if err != nil {
		return err
	}
	if err := replaceStoryTags(tx, storyID, tagIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// ApproveStory publishes a pending story and refreshes its updated_at,
// which moves it to the top of the "latest" feed.
func (s *StoreService) ApproveStory(storyID int64) error {
	res, err := s.DB.Exec(s.DB.Rebind(
		"UPDATE stories SET is_approved = 1, updated_at = ? WHERE id = ?"),
		utils.Timestamp(), storyID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrStoryNotFound
	}
	return nil
}

// DeleteStory hard-deletes a story and its join rows, returning the
// stored image path so the caller can clean up the uploaded file.
func (s *StoreService) DeleteStory(storyID int64) (string, error) {
	tx, err := s.DB.Beginx()
	if err != nil {
		return "", err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			s.logger.Error("Failed to rollback transaction in DeleteStory", "error", rerr)
		}
	}()

	var imagePath sql.NullString
	err = tx.QueryRow(tx.Rebind("SELECT image_path FROM stories WHERE id = ?"), storyID).Scan(&imagePath)
	if err == sql.ErrNoRows {
		return "", ErrStoryNotFound
	}
	if err != nil {
		return "", err
	}

	if _, err := tx.Exec(tx.Rebind("DELETE FROM story_tags WHERE story_id = ?"), storyID); err != nil {
		return "", err
	}
	if _, err := tx.Exec(tx.Rebind("DELETE FROM stories WHERE id = ?"), storyID); err != nil {
		return "", err
	}
	return imagePath.String, tx.Commit()
}

// ToggleLike applies one visitor's like or unlike to an approved story.
// The counter never goes below zero. Missing or unapproved stories
// return ErrStoryNotFound so the handler can no-op quietly.
func (s *StoreService) ToggleLike(storyID int64, alreadyLiked bool) error {
	var id int64
	err := s.DB.QueryRow(s.DB.Rebind(
		"SELECT id FROM stories WHERE id = ? AND is_approved = 1"), storyID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrStoryNotFound
	}
	if err != nil {
		return err
	}

	if alreadyLiked {
		_, err = s.DB.Exec(s.DB.Rebind(
			"UPDATE stories SET likes = CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END WHERE id = ?"), storyID)
	} else {
		_, err = s.DB.Exec(s.DB.Rebind(
			"UPDATE stories SET likes = likes + 1 WHERE id = ?"), storyID)
	}
	return err
}

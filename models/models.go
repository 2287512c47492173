// kex/models/models.go
package models

import "database/sql"

// --- Core Data Models ---

// Tag is a free-form label attached to stories. Names are unique and
// created lazily the first time a submitter types an unseen one.
type Tag struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
}

// Story is a single kindness story. Timestamps are ISO-8601 UTC text,
// matching what the store writes.
type Story struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	Title      string         `db:"title"`
	Body       string         `db:"body"`
	Likes      int            `db:"likes"`
	CreatedAt  string         `db:"created_at"`
	UpdatedAt  string         `db:"updated_at"`
	ImagePath  sql.NullString `db:"image_path"`
	IsApproved bool           `db:"is_approved"`

	// Assembled from the aggregate listing query, not columns.
	Tags      []Tag `db:"-"`
	Relevance int   `db:"-"`
}

// TagUsage is a tag plus how many stories carry it, for the sidebar
// filter list and the admin overview.
type TagUsage struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	StoryCount int    `db:"story_count"`
}

// StoryForm carries submitted form values back into a re-rendered form
// when validation fails.
type StoryForm struct {
	Name        string
	Title       string
	Body        string
	SelectedIDs []int64
	NewTagInput string
}

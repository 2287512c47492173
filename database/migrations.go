// kex/database/migrations.go
package database

// migration represents a single database schema migration. Queries here
// must be valid in both dialects.
type migration struct {
	Version uint
	Query   string
}

// allMigrations holds all schema changes in order.
var allMigrations = []migration{
	{
		Version: 1,
		Query: `
CREATE INDEX IF NOT EXISTS idx_stories_approved ON stories(is_approved, updated_at);
CREATE INDEX IF NOT EXISTS idx_story_tags_tag ON story_tags(tag_id);
CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);
		`,
	},
}

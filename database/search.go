// kex/database/search.go
package database

import (
	"sort"
	"strings"

	"kex/models"
)

// Relevance scores a story against a search needle: title matches count
// double, body and submitter name count once. Substring counts are plain
// non-overlapping counts of the lowercased needle.
func Relevance(story *models.Story, needle string) int {
	needle = strings.ToLower(needle)
	if needle == "" {
		return 0
	}
	title := strings.Count(strings.ToLower(story.Title), needle) * 2
	body := strings.Count(strings.ToLower(story.Body), needle)
	name := strings.Count(strings.ToLower(story.Name), needle)
	return title + body + name
}

// RankStories assigns relevance scores and stable-sorts descending by
// (relevance, likes) for the likes sort, or (relevance, updated_at) for
// the latest sort. SQL-level ordering already handled the no-search case.
func RankStories(stories []models.Story, query, sortParam string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	for i := range stories {
		stories[i].Relevance = Relevance(&stories[i], query)
	}

	switch sortParam {
	case "latest":
		sort.SliceStable(stories, func(i, j int) bool {
			if stories[i].Relevance != stories[j].Relevance {
				return stories[i].Relevance > stories[j].Relevance
			}
			return stories[i].UpdatedAt > stories[j].UpdatedAt
		})
	default: // likes
		sort.SliceStable(stories, func(i, j int) bool {
			if stories[i].Relevance != stories[j].Relevance {
				return stories[i].Relevance > stories[j].Relevance
			}
			return stories[i].Likes > stories[j].Likes
		})
	}
}

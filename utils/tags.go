// kex/utils/tags.go
package utils

import (
	"regexp"
	"strings"
)

var tagSplitter = regexp.MustCompile(`[,\s]+`)

// ParseTagNames splits free-text tag input on commas and whitespace,
// trims each piece, drops empties and names that would collide with the
// aggregation delimiter, and deduplicates preserving first-seen order.
func ParseTagNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, piece := range tagSplitter.Split(raw, -1) {
		piece = strings.TrimSpace(piece)
		if piece == "" || strings.Contains(piece, "||") {
			continue
		}
		if !seen[piece] {
			seen[piece] = true
			names = append(names, piece)
		}
	}
	return names
}

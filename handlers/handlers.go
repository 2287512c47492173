// kex/handlers/handlers.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"kex/database"
	"kex/models"
	"kex/utils"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	Store() *database.StoreService
	RateLimiter() *models.RateLimiter
	Logger() *slog.Logger
	UploadDir() string
	Storage() utils.StorageService
	AdminPasswordHash() string
}

// MakeHandler binds the App dependency into a plain http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// HandleIndex serves the public feed: approved stories, optionally
// filtered by tag or search query, sorted by likes or recency.
func HandleIndex(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleIndex")

	tagFilter, _ := strconv.ParseInt(r.URL.Query().Get("tag"), 10, 64)
	searchQuery := strings.TrimSpace(r.URL.Query().Get("q"))
	sortParam := r.URL.Query().Get("sort")
	if sortParam != "likes" && sortParam != "latest" {
		sortParam = "likes"
	}
	submitted := r.URL.Query().Get("submitted") != ""

	order := []string{"s.likes DESC", "s.updated_at DESC"}
	if sortParam == "latest" {
		order = []string{"s.updated_at DESC"}
	}

	stories, err := app.Store().LoadStories(database.StoryFilter{
		Approved: database.Approved(),
		TagID:    tagFilter,
		Search:   searchQuery,
		Order:    order,
	})
	if err != nil {
		logger.Error("Failed to load stories", "error", err)
		http.Error(w, "Database error loading stories.", http.StatusInternalServerError)
		return
	}
	database.RankStories(stories, searchQuery, sortParam)

	tags, err := app.Store().TagsWithCounts()
	if err != nil {
		logger.Error("Failed to load tag counts", "error", err)
	}

	var infoMessage string
	if submitted {
		infoMessage = "Your story has been submitted and will appear once a moderator approves it."
	}

	render(w, r, app, "index.html", map[string]interface{}{
		"Title":       "Kindness Exchange",
		"Stories":     stories,
		"Tags":        tags,
		"ActiveTag":   tagFilter,
		"SearchQuery": searchQuery,
		"SortParam":   sortParam,
		"InfoMessage": infoMessage,
		"LikedIDs":    LikedStories(r),
	})
}

// kex/handlers/admin.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"kex/config"
	"kex/database"

	"golang.org/x/crypto/bcrypt"
)

// HandleAdmin gates the moderation panel behind a password form, then
// dispatches approve / delete_story / delete_tag actions.
func HandleAdmin(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdmin")

	if !IsAdmin(r) {
		var errMsg string
		if r.Method == http.MethodPost {
			password := r.FormValue("password")
			err := bcrypt.CompareHashAndPassword([]byte(app.AdminPasswordHash()), []byte(password))
			if err == nil {
				SetAdminSession(w, r)
				http.Redirect(w, r, "/admin", http.StatusSeeOther)
				return
			}
			if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				logger.Error("Bcrypt error comparing admin password", "error", err)
			}
			errMsg = "Wrong admin password."
		}
		render(w, r, app, "admin_login.html", map[string]interface{}{
			"Title": "Admin Login",
			"Error": errMsg,
		})
		return
	}

	var errMsg, infoMessage string
	if r.Method == http.MethodPost {
		errMsg, infoMessage = runAdminAction(r, app)
	}

	pending, err := app.Store().LoadStories(database.StoryFilter{
		Approved: database.Pending(),
		Order:    []string{"s.created_at ASC"},
	})
	if err != nil {
		logger.Error("Failed to load pending stories", "error", err)
	}
	published, err := app.Store().LoadStories(database.StoryFilter{
		Approved: database.Approved(),
		Order:    []string{"s.updated_at DESC"},
	})
	if err != nil {
		logger.Error("Failed to load published stories", "error", err)
	}
	if len(published) > config.AdminRecentLimit {
		published = published[:config.AdminRecentLimit]
	}
	allStories, err := app.Store().LoadStories(database.StoryFilter{
		Order: []string{"s.updated_at DESC"},
	})
	if err != nil {
		logger.Error("Failed to load all stories", "error", err)
	}
	tagOverview, err := app.Store().TagsAdminOverview()
	if err != nil {
		logger.Error("Failed to load tag overview", "error", err)
	}

	render(w, r, app, "admin.html", map[string]interface{}{
		"Title":            "Admin Panel",
		"Error":            errMsg,
		"InfoMessage":      infoMessage,
		"PendingStories":   pending,
		"PublishedStories": published,
		"AllStories":       allStories,
		"TagOverview":      tagOverview,
	})
}

// runAdminAction executes one moderation action and returns the
// (error, info) messages for the panel.
func runAdminAction(r *http.Request, app App) (string, string) {
	logger := app.Logger().With("handler", "HandleAdmin")
	action := r.FormValue("action")
	if action == "" {
		action = "approve"
	}

	if action == "delete_tag" {
		tagID, err := strconv.ParseInt(r.FormValue("tag_id"), 10, 64)
		if err != nil {
			return "Missing tag ID.", ""
		}
		storiesDeleted, imagePaths, err := app.Store().DeleteTag(tagID)
		if err != nil {
			if errors.Is(err, database.ErrTagNotFound) {
				return "Tag not found.", ""
			}
			logger.Error("Failed to delete tag", "tag_id", tagID, "error", err)
			return "Database error deleting tag.", ""
		}
		for _, path := range imagePaths {
			if err := app.Storage().DeleteFile(path); err != nil {
				logger.Warn("Failed to remove image for deleted story", "path", path, "error", err)
			}
		}
		logger.Info("Tag and its stories deleted", "tag_id", tagID, "stories_deleted", storiesDeleted)
		return "", "Tag and its stories have been deleted."
	}

	storyID, err := strconv.ParseInt(r.FormValue("story_id"), 10, 64)
	if err != nil {
		return "Missing story ID.", ""
	}

	switch action {
	case "delete_story":
		imagePath, err := app.Store().DeleteStory(storyID)
		if err != nil {
			if errors.Is(err, database.ErrStoryNotFound) {
				return "Story not found.", ""
			}
			logger.Error("Failed to delete story", "story_id", storyID, "error", err)
			return "Database error deleting story.", ""
		}
		if imagePath != "" {
			if err := app.Storage().DeleteFile(imagePath); err != nil {
				logger.Warn("Failed to remove image for deleted story", "path", imagePath, "error", err)
			}
		}
		logger.Info("Story deleted", "story_id", storyID)
		return "", "Story has been deleted."
	default: // approve
		if err := app.Store().ApproveStory(storyID); err != nil {
			if errors.Is(err, database.ErrStoryNotFound) {
				return "Story not found.", ""
			}
			logger.Error("Failed to approve story", "story_id", storyID, "error", err)
			return "Database error approving story.", ""
		}
		logger.Info("Story approved", "story_id", storyID)
		return "", "Story has been approved and published."
	}
}

// HandleAdminLogout clears the admin session flag.
func HandleAdminLogout(w http.ResponseWriter, r *http.Request, app App) {
	ClearAdminSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

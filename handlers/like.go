// kex/handlers/like.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"kex/database"

	"github.com/go-chi/chi/v5"
)

// HandleLike toggles the visitor's like on an approved story. Missing or
// unapproved stories redirect back without surfacing an error.
func HandleLike(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleLike")

	backTo := r.Referer()
	if backTo == "" {
		backTo = "/"
	}

	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		http.Redirect(w, r, backTo, http.StatusSeeOther)
		return
	}

	liked := LikedStories(r)
	err = app.Store().ToggleLike(storyID, liked[storyID])
	if err != nil {
		if !errors.Is(err, database.ErrStoryNotFound) {
			logger.Error("Failed to toggle like", "story_id", storyID, "error", err)
		}
		http.Redirect(w, r, backTo, http.StatusSeeOther)
		return
	}

	if liked[storyID] {
		delete(liked, storyID)
	} else {
		liked[storyID] = true
	}
	SaveLikedStories(w, r, liked)

	http.Redirect(w, r, backTo, http.StatusSeeOther)
}

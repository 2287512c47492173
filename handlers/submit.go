// kex/handlers/submit.go
package handlers

import (
	"database/sql"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"kex/config"
	"kex/database"
	"kex/models"
	"kex/utils"

	"github.com/go-chi/chi/v5"
)

const maxUploadMemory = 16 << 20

// renderStoryForm shows the submission/edit form, optionally with an
// error and the visitor's original input preserved.
func renderStoryForm(w http.ResponseWriter, r *http.Request, app App, formAction string, form *models.StoryForm, errMsg string) {
	tags, err := app.Store().AllTags()
	if err != nil {
		app.Logger().Error("Failed to load tags for form", "error", err)
	}
	if form == nil {
		form = &models.StoryForm{}
	}
	render(w, r, app, "form.html", map[string]interface{}{
		"Title":       "Share a Story",
		"FormAction":  formAction,
		"Form":        form,
		"Tags":        tags,
		"Error":       errMsg,
		"SelectedIDs": form.SelectedIDs,
	})
}

// HandleSubmitForm serves the empty submission form.
func HandleSubmitForm(w http.ResponseWriter, r *http.Request, app App) {
	renderStoryForm(w, r, app, "/submit", nil, "")
}

// parseStoryForm pulls the shared submit/edit fields out of a multipart
// form.
func parseStoryForm(r *http.Request) (*models.StoryForm, []string, []string) {
	form := &models.StoryForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Title:       strings.TrimSpace(r.FormValue("title")),
		Body:        strings.TrimSpace(r.FormValue("body")),
		NewTagInput: strings.TrimSpace(r.FormValue("new_tags")),
	}
	selectedIDs := r.Form["tags"]
	for _, raw := range selectedIDs {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			form.SelectedIDs = append(form.SelectedIDs, id)
		}
	}
	return form, selectedIDs, utils.ParseTagNames(form.NewTagInput)
}

// validateStoryForm returns a visitor-facing error message, or "" when
// the form is acceptable.
func validateStoryForm(form *models.StoryForm, photos []*multipart.FileHeader) string {
	if len(photos) > config.MaxPhotos {
		return "Please attach at most one photo."
	}
	if !utils.ValidSubmitterName(form.Name) || len([]rune(form.Name)) > config.MaxNameLen {
		return "Your name needs your class and your name, e.g. \"Class 3 Jamie Park\"."
	}
	if form.Title == "" || form.Body == "" {
		return "Both a title and your story are required."
	}
	if len([]rune(form.Title)) > config.MaxTitleLen || len([]rune(form.Body)) > config.MaxBodyLen {
		return "Your title or story is too long."
	}
	return ""
}

// photoUploads filters out empty file parts the browser sends for an
// untouched file input.
func photoUploads(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	var photos []*multipart.FileHeader
	for _, fh := range r.MultipartForm.File["photo"] {
		if fh != nil && fh.Filename != "" {
			photos = append(photos, fh)
		}
	}
	return photos
}

// saveUploadedPhoto compresses one upload under the byte budget and
// stores it, returning the relative path for the stories table.
func saveUploadedPhoto(app App, fh *multipart.FileHeader) (string, error) {
	if !utils.AllowedImageName(fh.Filename) {
		return "", utils.ErrInvalidImage
	}
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			app.Logger().Error("Failed to close upload file", "error", err)
		}
	}()

	data, err := utils.CompressImage(file)
	if err != nil {
		return "", err
	}
	return app.Storage().SaveFile(utils.UploadName(), data, "image/jpeg")
}

// HandleSubmitStory creates a pending story from the submission form.
func HandleSubmitStory(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleSubmitStory")

	if !app.RateLimiter().GetLimiter(utils.GetIPAddress(r)).Allow() {
		http.Error(w, "Too many submissions. Please wait a moment.", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.Warn("Form parsing error", "error", err)
		http.Error(w, "Form parsing error.", http.StatusBadRequest)
		return
	}

	form, selectedIDs, newNames := parseStoryForm(r)
	photos := photoUploads(r)

	if errMsg := validateStoryForm(form, photos); errMsg != "" {
		renderStoryForm(w, r, app, "/submit", form, errMsg)
		return
	}

	imagePath := sql.NullString{}
	if len(photos) == 1 {
		path, err := saveUploadedPhoto(app, photos[0])
		if err != nil {
			if errors.Is(err, utils.ErrInvalidImage) || errors.Is(err, utils.ErrImageTooLarge) {
				renderStoryForm(w, r, app, "/submit", form, err.Error())
				return
			}
			logger.Error("Failed to store uploaded photo", "error", err)
			http.Error(w, "Failed to store the uploaded photo.", http.StatusInternalServerError)
			return
		}
		imagePath = sql.NullString{String: path, Valid: true}
	}

	storyID, err := app.Store().CreateStory(form.Name, form.Title, form.Body, imagePath, selectedIDs, newNames)
	if err != nil {
		logger.Error("Failed to create story", "error", err)
		http.Error(w, "Database error saving your story.", http.StatusInternalServerError)
		return
	}

	logger.Info("New story submitted", "story_id", storyID)
	http.Redirect(w, r, "/?submitted=1", http.StatusSeeOther)
}

// HandleEditForm serves the edit form pre-filled with the stored story.
func HandleEditForm(w http.ResponseWriter, r *http.Request, app App) {
	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	story, err := app.Store().GetStory(storyID)
	if err != nil {
		if errors.Is(err, database.ErrStoryNotFound) {
			http.NotFound(w, r)
			return
		}
		app.Logger().Error("Failed to load story for edit", "story_id", storyID, "error", err)
		http.Error(w, "Database error loading story.", http.StatusInternalServerError)
		return
	}

	form := &models.StoryForm{
		Name:  story.Name,
		Title: story.Title,
		Body:  story.Body,
	}
	for _, tag := range story.Tags {
		form.SelectedIDs = append(form.SelectedIDs, tag.ID)
	}
	renderStoryForm(w, r, app, r.URL.Path, form, "")
}

// HandleEditStory rewrites a story and fully replaces its tag set.
func HandleEditStory(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleEditStory")

	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Form parsing error.", http.StatusBadRequest)
		return
	}

	form, selectedIDs, newNames := parseStoryForm(r)
	photos := photoUploads(r)

	if errMsg := validateStoryForm(form, photos); errMsg != "" {
		renderStoryForm(w, r, app, r.URL.Path, form, errMsg)
		return
	}

	imagePath := sql.NullString{}
	if len(photos) == 1 {
		path, err := saveUploadedPhoto(app, photos[0])
		if err != nil {
			if errors.Is(err, utils.ErrInvalidImage) || errors.Is(err, utils.ErrImageTooLarge) {
				renderStoryForm(w, r, app, r.URL.Path, form, err.Error())
				return
			}
			logger.Error("Failed to store uploaded photo", "error", err)
			http.Error(w, "Failed to store the uploaded photo.", http.StatusInternalServerError)
			return
		}
		imagePath = sql.NullString{String: path, Valid: true}
	}

	err = app.Store().UpdateStory(storyID, form.Name, form.Title, form.Body, imagePath, selectedIDs, newNames)
	if err != nil {
		if errors.Is(err, database.ErrStoryNotFound) {
			http.NotFound(w, r)
			return
		}
		logger.Error("Failed to update story", "story_id", storyID, "error", err)
		http.Error(w, "Database error saving your story.", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

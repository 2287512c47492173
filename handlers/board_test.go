// kex/handlers/board_test.go
package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"kex/database"
	"kex/models"
)

// TestIndexHidesPendingStories verifies the public feed only shows
// approved stories.
func TestIndexHidesPendingStories(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	visibleID, err := app.Store().CreateStory("Class 3 Jamie", "Visible story", "Body.", sql.NullString{}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create story: %v", err)
	}
	if err := app.Store().ApproveStory(visibleID); err != nil {
		t.Fatalf("Failed to approve story: %v", err)
	}
	if _, err := app.Store().CreateStory("Class 4 Riley", "Hidden story", "Body.", sql.NullString{}, nil, nil); err != nil {
		t.Fatalf("Failed to create pending story: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	page := rr.Body.String()
	if !strings.Contains(page, "Visible story") {
		t.Error("Expected the approved story on the feed")
	}
	if strings.Contains(page, "Hidden story") {
		t.Error("Expected the pending story to stay hidden")
	}
}

// TestSubmitStoryFlow walks the submit -> pending -> approve -> visible
// lifecycle through the HTTP layer.
func TestSubmitStoryFlow(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	body, contentType := storyFormBody(t, map[string]string{
		"name":     "Class 3 Jamie Park",
		"title":    "Shared my umbrella",
		"body":     "It was raining and my friend forgot hers.",
		"new_tags": "rain, sharing",
	})
	req := httptest.NewRequest("POST", "/submit", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect after submit, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/?submitted=1" {
		t.Errorf("Expected redirect to /?submitted=1, got '%s'", loc)
	}

	pending, err := app.Store().LoadStories(database.StoryFilter{Approved: database.Pending()})
	if err != nil {
		t.Fatalf("Failed to load pending stories: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending story, got %d", len(pending))
	}
	story := pending[0]
	if story.Title != "Shared my umbrella" {
		t.Errorf("Unexpected title '%s'", story.Title)
	}
	if len(story.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %v", story.Tags)
	}

	if err := app.Store().ApproveStory(story.ID); err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}

	req = httptest.NewRequest("GET", "/", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if !strings.Contains(rr.Body.String(), "Shared my umbrella") {
		t.Error("Expected approved story on the feed")
	}
}

// TestSubmitStoryValidation checks rejected forms re-render with the
// visitor's input preserved.
func TestSubmitStoryValidation(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	testCases := []struct {
		name   string
		fields map[string]string
	}{
		{
			name:   "Name without class",
			fields: map[string]string{"name": "Jamie", "title": "T", "body": "B"},
		},
		{
			name:   "Missing title",
			fields: map[string]string{"name": "Class 3 Jamie", "title": "", "body": "B"},
		},
		{
			name:   "Missing body",
			fields: map[string]string{"name": "Class 3 Jamie", "title": "T", "body": ""},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := storyFormBody(t, tc.fields)
			req := httptest.NewRequest("POST", "/submit", body)
			req.Header.Set("Content-Type", contentType)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected form re-render with 200, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "class=\"error\"") {
				t.Error("Expected an error message on the form")
			}
		})
	}

	stories, err := app.Store().LoadStories(database.StoryFilter{})
	if err != nil {
		t.Fatalf("Failed to load stories: %v", err)
	}
	if len(stories) != 0 {
		t.Errorf("Expected no stories persisted from invalid forms, got %d", len(stories))
	}
}

// TestSubmitRateLimited verifies the per-IP limiter returns 429 once the
// burst is spent.
func TestSubmitRateLimited(t *testing.T) {
	app := setupTestApp(t)
	strict := &MockApplication{
		store:         app.store,
		rateLimiter:   models.NewRateLimiter(time.Hour, 1, time.Hour, 24*time.Hour),
		logger:        app.logger,
		uploadDir:     app.uploadDir,
		storage:       app.storage,
		adminPassHash: app.adminPassHash,
	}
	router := SetupRouter(strict)

	post := func() *httptest.ResponseRecorder {
		body, contentType := storyFormBody(t, map[string]string{
			"name": "Class 3 Jamie", "title": "T", "body": "B",
		})
		req := httptest.NewRequest("POST", "/submit", body)
		req.Header.Set("Content-Type", contentType)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := post(); rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected first submission accepted, got %d", rr.Code)
	}
	if rr := post(); rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected second submission limited with 429, got %d", rr.Code)
	}
}

// TestEditStoryReplacesContent checks the edit endpoint rewrites fields
// and tags.
func TestEditStoryReplacesContent(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	storyID, err := app.Store().CreateStory("Class 3 Jamie", "Before", "Old body.", sql.NullString{}, nil, []string{"old"})
	if err != nil {
		t.Fatalf("Failed to create story: %v", err)
	}

	body, contentType := storyFormBody(t, map[string]string{
		"name":     "Class 3 Jamie",
		"title":    "After",
		"body":     "New body.",
		"new_tags": "fresh",
	})
	req := httptest.NewRequest("POST", "/story/"+strconv.FormatInt(storyID, 10)+"/edit", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect after edit, got %d: %s", rr.Code, rr.Body.String())
	}

	story, err := app.Store().GetStory(storyID)
	if err != nil {
		t.Fatalf("Failed to fetch story: %v", err)
	}
	if story.Title != "After" || story.Body != "New body." {
		t.Errorf("Expected edited content, got '%s' / '%s'", story.Title, story.Body)
	}
	if len(story.Tags) != 1 || story.Tags[0].Name != "fresh" {
		t.Errorf("Expected tag set replaced, got %v", story.Tags)
	}

	t.Run("Unknown story is 404", func(t *testing.T) {
		body, contentType := storyFormBody(t, map[string]string{
			"name": "Class 3 Jamie", "title": "T", "body": "B",
		})
		req := httptest.NewRequest("POST", "/story/9999/edit", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rr.Code)
		}
	})
}

// TestLikeToggleRoundTrip likes then unlikes a story through the signed
// cookie.
func TestLikeToggleRoundTrip(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	storyID, err := app.Store().CreateStory("Class 3 Jamie", "Likable", "Body.", sql.NullString{}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create story: %v", err)
	}
	if err := app.Store().ApproveStory(storyID); err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}

	likePath := "/story/" + strconv.FormatInt(storyID, 10) + "/like"

	req := httptest.NewRequest("POST", likePath, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect after like, got %d", rr.Code)
	}

	story, _ := app.Store().GetStory(storyID)
	if story.Likes != 1 {
		t.Fatalf("Expected 1 like, got %d", story.Likes)
	}

	// Second request with the cookie unlikes.
	req = httptest.NewRequest("POST", likePath, nil)
	copyCookies(req, rr.Result().Cookies())
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	story, _ = app.Store().GetStory(storyID)
	if story.Likes != 0 {
		t.Errorf("Expected like removed, got %d", story.Likes)
	}

	t.Run("Pending story is a silent no-op", func(t *testing.T) {
		pendingID, err := app.Store().CreateStory("Class 4 Riley", "Pending", "Body.", sql.NullString{}, nil, nil)
		if err != nil {
			t.Fatalf("Failed to create story: %v", err)
		}
		req := httptest.NewRequest("POST", "/story/"+strconv.FormatInt(pendingID, 10)+"/like", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusSeeOther {
			t.Errorf("Expected silent redirect, got %d", rr.Code)
		}
		story, _ := app.Store().GetStory(pendingID)
		if story.Likes != 0 {
			t.Errorf("Expected pending story unaffected, got %d likes", story.Likes)
		}
	})
}

// TestIndexTagAndSearchFilters drives the feed's query parameters.
func TestIndexTagAndSearchFilters(t *testing.T) {
	app := setupTestApp(t)
	router := SetupRouter(app)

	rainID, err := app.Store().CreateStory("Class 3 Jamie", "Umbrella day", "Rain rain rain.", sql.NullString{}, nil, []string{"rain"})
	if err != nil {
		t.Fatalf("Failed to create story: %v", err)
	}
	lunchID, err := app.Store().CreateStory("Class 4 Riley", "Extra sandwich", "Shared my lunch.", sql.NullString{}, nil, []string{"lunch"})
	if err != nil {
		t.Fatalf("Failed to create story: %v", err)
	}
	for _, id := range []int64{rainID, lunchID} {
		if err := app.Store().ApproveStory(id); err != nil {
			t.Fatalf("Failed to approve: %v", err)
		}
	}

	var rainTagID int64
	if err := app.Store().DB.QueryRow("SELECT id FROM tags WHERE name = 'rain'").Scan(&rainTagID); err != nil {
		t.Fatalf("Failed to look up tag: %v", err)
	}

	t.Run("Tag filter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?tag="+strconv.FormatInt(rainTagID, 10), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		page := rr.Body.String()
		if !strings.Contains(page, "Umbrella day") || strings.Contains(page, "Extra sandwich") {
			t.Error("Expected only the rain story for the tag filter")
		}
	})

	t.Run("Search", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?q=sandwich", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		page := rr.Body.String()
		if !strings.Contains(page, "Extra sandwich") || strings.Contains(page, "Umbrella day") {
			t.Error("Expected only the sandwich story for the search")
		}
	})
}

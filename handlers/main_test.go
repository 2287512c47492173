// kex/handlers/main_test.go
package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kex/database"
	"kex/models"
	"kex/utils"

	"golang.org/x/crypto/bcrypt"
)

const testAdminPassword = "test-password"

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	store         *database.StoreService
	rateLimiter   *models.RateLimiter
	logger        *slog.Logger
	uploadDir     string
	storage       utils.StorageService
	adminPassHash string
}

func (a *MockApplication) Store() *database.StoreService  { return a.store }
func (a *MockApplication) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *MockApplication) Logger() *slog.Logger           { return a.logger }
func (a *MockApplication) UploadDir() string              { return a.uploadDir }
func (a *MockApplication) Storage() utils.StorageService  { return a.storage }
func (a *MockApplication) AdminPasswordHash() string      { return a.adminPassHash }

// setupTestApp creates a full application stack with a test database.
func setupTestApp(t *testing.T) *MockApplication {
	t.Helper()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("Failed to change directory to project root: %v", err)
	}
	if err := LoadTemplates(); err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}
	if err := os.Chdir("handlers"); err != nil {
		t.Fatalf("Failed to change back to handlers directory: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dbDir, err := os.MkdirTemp("", "kex_test_db_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir for test DB: %v", err)
	}
	dbPath := filepath.Join(dbDir, "test.db?_journal_mode=WAL&_foreign_keys=on")
	store, err := database.InitStore([]string{dbPath}, logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	uploadDir, err := os.MkdirTemp("", "kex_test_uploads_*")
	if err != nil {
		t.Fatalf("Failed to create temp upload dir: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}

	app := &MockApplication{
		store:         store,
		rateLimiter:   models.NewRateLimiter(30*time.Second, 100, 1*time.Hour, 24*time.Hour),
		logger:        logger,
		uploadDir:     uploadDir,
		storage:       &utils.LocalStorage{UploadDir: uploadDir},
		adminPassHash: string(hash),
	}

	utils.SessionSecret = "test-session-secret"

	t.Cleanup(func() {
		app.store.DB.Close()
		os.RemoveAll(dbDir)
		os.RemoveAll(uploadDir)
		utils.SessionSecret = ""
	})

	return app
}

// storyFormBody builds a multipart submission form without a photo.
func storyFormBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write form field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// copyCookies carries Set-Cookie values from a response into a request.
func copyCookies(req *http.Request, cookies []*http.Cookie) {
	for _, c := range cookies {
		req.AddCookie(c)
	}
}

// kex/main.go
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"kex/config"
	"kex/database"
	"kex/handlers"
	"kex/models"
	"kex/utils"

	"golang.org/x/crypto/bcrypt"
)

type Application struct {
	store         *database.StoreService
	rateLimiter   *models.RateLimiter
	logger        *slog.Logger
	uploadDir     string
	storage       utils.StorageService
	adminPassHash string
}

// Methods to satisfy the handlers.App interface
func (a *Application) Store() *database.StoreService  { return a.store }
func (a *Application) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *Application) Logger() *slog.Logger           { return a.logger }
func (a *Application) UploadDir() string              { return a.uploadDir }
func (a *Application) Storage() utils.StorageService  { return a.storage }
func (a *Application) AdminPasswordHash() string      { return a.adminPassHash }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- External Configuration ---
	port := utils.GetEnv("KEX_PORT", "8080")

	utils.SessionSecret = os.Getenv("KEX_SESSION_SECRET")
	if utils.SessionSecret == "" {
		// Random per-process secret; sessions reset on restart.
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			logger.Error("Failed to generate session secret", "error", err)
			os.Exit(1)
		}
		utils.SessionSecret = hex.EncodeToString(secretBytes)
	}

	adminPassHash := os.Getenv("KEX_ADMIN_PASSWORD_HASH")
	if adminPassHash == "" {
		password := os.Getenv("KEX_ADMIN_PASSWORD")
		if password == "" {
			logger.Error("FATAL: KEX_ADMIN_PASSWORD_HASH or KEX_ADMIN_PASSWORD must be set")
			os.Exit(1)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("Failed to hash admin password", "error", err)
			os.Exit(1)
		}
		adminPassHash = string(hashed)
	}

	// Database candidates: explicit override wins; on hosted deployments
	// the internal network URL is tried before the external one; a local
	// SQLite file is the default.
	customURL := os.Getenv("DATABASE_URL")
	internalURL := os.Getenv("KEX_INTERNAL_DB_URL")
	externalURL := os.Getenv("KEX_EXTERNAL_DB_URL")
	if os.Getenv("KEX_HOSTED") == "" {
		internalURL = ""
	}
	candidates := database.Candidates(customURL, internalURL, externalURL)
	if len(candidates) == 0 {
		candidates = []string{utils.GetEnv("KEX_DB_PATH", "./stories.db?_journal_mode=WAL&_foreign_keys=on")}
	}

	rateLimitEvery, err := time.ParseDuration(utils.GetEnv("KEX_RATE_EVERY", config.DefaultRateLimitEvery))
	if err != nil {
		logger.Warn("Invalid KEX_RATE_EVERY duration, using default", "value", utils.GetEnv("KEX_RATE_EVERY", ""), "default", config.DefaultRateLimitEvery)
		rateLimitEvery, _ = time.ParseDuration(config.DefaultRateLimitEvery)
	}
	rateLimitBurst, err := strconv.Atoi(utils.GetEnv("KEX_RATE_BURST", strconv.Itoa(config.DefaultRateLimitBurst)))
	if err != nil {
		logger.Warn("Invalid KEX_RATE_BURST integer, using default", "value", utils.GetEnv("KEX_RATE_BURST", ""), "default", config.DefaultRateLimitBurst)
		rateLimitBurst = config.DefaultRateLimitBurst
	}
	rateLimitPrune, err := time.ParseDuration(utils.GetEnv("KEX_RATE_PRUNE", config.DefaultRateLimitPrune))
	if err != nil {
		rateLimitPrune, _ = time.ParseDuration(config.DefaultRateLimitPrune)
	}
	rateLimitExpire, err := time.ParseDuration(utils.GetEnv("KEX_RATE_EXPIRE", config.DefaultRateLimitExpire))
	if err != nil {
		rateLimitExpire, _ = time.ParseDuration(config.DefaultRateLimitExpire)
	}

	// --- One-time bootstrap, before any request is served ---
	store, err := database.InitStore(candidates, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err := handlers.LoadTemplates(); err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	uploadDir := utils.GetEnv("KEX_UPLOAD_DIR", "./uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Error("FATAL: Could not create uploads directory", "path", uploadDir, "error", err)
		os.Exit(1)
	}

	// --- Storage Service Init ---
	var storageService utils.StorageService
	if utils.GetEnv("KEX_S3_ENABLED", "false") == "true" {
		endpoint := utils.GetEnv("KEX_S3_ENDPOINT", "")
		accessKey := utils.GetEnv("KEX_S3_ACCESS_KEY", "")
		secretKey := utils.GetEnv("KEX_S3_SECRET_KEY", "")
		bucket := utils.GetEnv("KEX_S3_BUCKET", "")
		region := utils.GetEnv("KEX_S3_REGION", "us-east-1")
		publicURL := utils.GetEnv("KEX_S3_PUBLIC_URL", "")
		useSSL := utils.GetEnv("KEX_S3_USE_SSL", "true") == "true"

		storageService, err = utils.NewS3Storage(endpoint, accessKey, secretKey, bucket, region, publicURL, useSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		logger.Info("S3 Storage initialized", "endpoint", endpoint, "bucket", bucket)
	} else {
		storageService = &utils.LocalStorage{UploadDir: uploadDir}
		logger.Info("Local Storage initialized", "dir", uploadDir)
	}

	app := &Application{
		store:         store,
		rateLimiter:   models.NewRateLimiter(rateLimitEvery, rateLimitBurst, rateLimitPrune, rateLimitExpire),
		logger:        logger,
		uploadDir:     uploadDir,
		storage:       storageService,
		adminPassHash: adminPassHash,
	}

	mux := handlers.SetupRouter(app)
	finalHandler := handlers.VisitorCookieMiddleware(handlers.CSRFMiddleware(handlers.SecurityHeadersMiddleware(mux)))

	// --- Graceful Shutdown ---
	server := &http.Server{Addr: ":" + port, Handler: finalHandler}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("kex server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+port,
		"dialect", store.Dialect().String(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}

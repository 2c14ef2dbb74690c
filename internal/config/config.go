// Package config loads process configuration from the environment,
// following the teacher's convention of an init() that loads a .env file
// and falls back to whatever is already set in the process environment.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load env vars from .env file directly
func init() {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist (e.g. in production),
		// but we should log it just in case.
		// However, mostly we want to rely on environment variables being set.
		// If we are in local dev, this helps.
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// CacheBackend selects the derivative cache's persistent tier (§4.1).
type CacheBackend string

const (
	CacheBackendDisk CacheBackend = "disk"
	CacheBackendS3   CacheBackend = "s3"
)

// Config holds every environment-derived setting the catalog server needs.
// It is read once at startup; nothing here changes at runtime.
type Config struct {
	Env  string
	Port string

	DatabaseURL string

	HandleStorePath string // bbolt file backing the directory-handle store

	CacheBackend      CacheBackend
	CacheDir          string // root for CacheBackendDisk: <dir>/thumbnails, <dir>/previews
	ThumbnailCapacity int    // memory-tier bound, default 150
	PreviewCapacity   int    // memory-tier bound, default 50

	S3Bucket          string
	S3Region          string
	S3Endpoint        string // non-empty for R2-style S3-compatible endpoints
	S3AccessKeyID     string
	S3SecretAccessKey string

	PipelineConcurrency int // in-flight decoder tasks per pipeline, default 3
	ScanBatchSize       int // default 50, §4.5
}

// Load reads Config from the environment, applying the same
// getEnv-with-default pattern the teacher used for its own server settings.
func Load() Config {
	return Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		HandleStorePath: getEnv("HANDLE_STORE_PATH", "./data/handles.db"),

		CacheBackend:      CacheBackend(getEnv("CACHE_BACKEND", string(CacheBackendDisk))),
		CacheDir:          getEnv("CACHE_DIR", "./data/cache"),
		ThumbnailCapacity: getEnvInt("THUMBNAIL_CACHE_CAPACITY", 150),
		PreviewCapacity:   getEnvInt("PREVIEW_CACHE_CAPACITY", 50),

		S3Bucket:          os.Getenv("CACHE_S3_BUCKET"),
		S3Region:          getEnv("CACHE_S3_REGION", "auto"),
		S3Endpoint:        os.Getenv("CACHE_S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("CACHE_S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("CACHE_S3_SECRET_ACCESS_KEY"),

		PipelineConcurrency: getEnvInt("PIPELINE_CONCURRENCY", 3),
		ScanBatchSize:       getEnvInt("SCAN_BATCH_SIZE", 50),
	}
}

// GetAllowedOrigins returns a slice of allowed origins from the environment
// variable. It defaults to localhost:3000 if not set.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	// Split by comma and trim spaces
	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

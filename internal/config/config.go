package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	GitHub  GitHubConfig
	Gemini  GeminiConfig
	Archive ArchiveConfig

	// DatabaseURL selects the postgres ledger backend; empty keeps history
	// in memory.
	DatabaseURL string
	// CatalogPath optionally overrides the built-in signature catalog.
	CatalogPath string

	// AIDelay is the pause between successive AI-tier submissions.
	AIDelay time.Duration

	LogFile  string
	LogLevel slog.Level
}

type GitHubConfig struct {
	Token   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type ArchiveConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether the S3 configuration is complete enough to build
// a client. Anything less falls back to the in-memory store.
func (a ArchiveConfig) CanUseS3() bool {
	return a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "local")
	cfg := &Config{
		Port:        normalizePort(getEnv("PORT", ":8080")),
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CatalogPath: strings.TrimSpace(os.Getenv("SIGNATURE_CATALOG")),
		AIDelay:     parseDuration(getEnv("AI_CALL_DELAY", "1s"), time.Second),
		LogFile:     getEnv("LOG_FILE", "liberator.log"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "INFO")),
		GitHub: GitHubConfig{
			Token:   strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
			BaseURL: strings.TrimSpace(os.Getenv("GITHUB_API_URL")),
		},
		Gemini: GeminiConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Archive: ArchiveConfig{
			Endpoint:  resolveArchiveEndpoint(env),
			Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			AccessKey: firstNonEmpty(os.Getenv("ARCHIVE_S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(os.Getenv("ARCHIVE_S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
			Bucket:    getEnv("ARCHIVE_S3_BUCKET", "liberator-archives"),
			UseSSL:    resolveArchiveUseSSL(env),
		},
	}
	return cfg, nil
}

func resolveArchiveEndpoint(env string) string {
	if strings.EqualFold(env, "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_MINIO_ENDPOINT")), "")
	}
	return strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
}

func resolveArchiveUseSSL(env string) bool {
	if strings.EqualFold(env, "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func normalizePort(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ":8080"
	}
	if !strings.HasPrefix(p, ":") {
		p = ":" + p
	}
	return p
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimit is a token bucket rule for one route group.
type RateLimit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// Config holds application configuration.
type Config struct {
	Port             string
	CORSAllowOrigin  []string
	ObjectStoreType  string
	LocalStoreDir    string
	AWSRegion        string
	S3Bucket         string
	S3Prefix         string
	SSEKMSKeyID      string
	DatabaseURL      string
	Env              string
	AnalyzerURL      string
	AnalyzerTimeout  time.Duration
	ImportMaxBytes   int64
	ImportQueueURL   string
	ReviewerRole     string
	DefaultProfileID string
	RateLimits       map[string]RateLimit
}

// fileOverlay is the optional YAML file named by CONFIG_FILE. Env vars win over it.
type fileOverlay struct {
	Port             string               `yaml:"port"`
	CORSAllowOrigins []string             `yaml:"corsAllowOrigins"`
	ReviewerRole     string               `yaml:"reviewerRole"`
	DefaultProfileID string               `yaml:"defaultProfileId"`
	RateLimits       map[string]RateLimit `yaml:"rateLimits"`
	Analyzer         struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"analyzer"`
	Imports struct {
		MaxBytes int64  `yaml:"maxBytes"`
		QueueURL string `yaml:"queueUrl"`
	} `yaml:"imports"`
}

const (
	defaultReviewerRole   = "tuning:review"
	defaultProfileID      = "default"
	defaultImportMaxBytes = 20 << 20
	defaultAnalyzerTO     = 2 * time.Minute
)

// DefaultRateLimits applies when neither the overlay nor the environment names rules.
func DefaultRateLimits() map[string]RateLimit {
	return map[string]RateLimit{
		"DEFAULT":  {Rate: 10, Burst: 30},
		"ANALYSIS": {Rate: 0.2, Burst: 2},
		"IMPORT":   {Rate: 1, Burst: 5},
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	overlay, err := readOverlay(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("config: ignoring CONFIG_FILE: %v", err)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	origins := splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", ""))
	if len(origins) == 0 {
		origins = overlay.CORSAllowOrigins
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	rateLimits := DefaultRateLimits()
	for group, rule := range overlay.RateLimits {
		rateLimits[strings.ToUpper(group)] = rule
	}

	return Config{
		Port:             getEnv("PORT", orDefault(overlay.Port, "8080")),
		CORSAllowOrigin:  origins,
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:        getEnv("AWS_REGION", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:      getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:      dbURL,
		Env:              env,
		AnalyzerURL:      getEnv("ANALYZER_URL", overlay.Analyzer.URL),
		AnalyzerTimeout:  getDuration("ANALYZER_TIMEOUT", orDefault(overlay.Analyzer.Timeout, defaultAnalyzerTO.String())),
		ImportMaxBytes:   getInt64("IMPORT_MAX_BYTES", orDefaultInt(overlay.Imports.MaxBytes, defaultImportMaxBytes)),
		ImportQueueURL:   getEnv("IMPORT_QUEUE_URL", overlay.Imports.QueueURL),
		ReviewerRole:     getEnv("REVIEWER_ROLE", orDefault(overlay.ReviewerRole, defaultReviewerRole)),
		DefaultProfileID: getEnv("DEFAULT_PROFILE_ID", orDefault(overlay.DefaultProfileID, defaultProfileID)),
		RateLimits:       rateLimits,
	}
}

func readOverlay(path string) (fileOverlay, error) {
	var overlay fileOverlay
	path = strings.TrimSpace(path)
	if path == "" {
		return overlay, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileOverlay{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fileOverlay{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return overlay, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key, def string) time.Duration {
	raw := getEnv(key, def)
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// Bare integers are seconds.
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	log.Printf("config: %s invalid duration %q, using %s", key, raw, defaultAnalyzerTO)
	return defaultAnalyzerTO
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q", key, raw)
		return def
	}
	return val
}

func orDefault(val, def string) string {
	if strings.TrimSpace(val) == "" {
		return def
	}
	return val
}

func orDefaultInt(val, def int64) int64 {
	if val <= 0 {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

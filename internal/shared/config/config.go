package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	MaxRequestBytes int64
	UIRedirectURL   string

	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	DatabaseURL string
	RedisURL    string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	QueueBackend      string
	SQSQueueURL       string
	RedisQueueKey     string
	WorkerConcurrency int

	ModelServerURL  string
	ModelName       string
	ModelTimeout    time.Duration
	ChatModel       string
	FactCheckAPIKey string
	FactCheckURL    string
	NewsAPIKey      string
	TranslateURL    string
	SearchURL       string

	BillingURL           string
	BillingAPIKey        string
	BillingWebhookSecret string

	RateLimitDefault int
	RateLimitAnalyze int
	RateLimitChat    int
	RateLimitLogin   int

	LockoutMaxAttempts int
	LockoutWindow      time.Duration
	LockoutDuration    time.Duration
	RetentionDays      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))

	if env == "production" {
		if dbURL == "" {
			log.Printf("DATABASE_URL is required in production")
		}
		if len(secret) < 16 {
			log.Printf("JWT_SECRET of at least 16 characters is required in production")
		}
	}

	return Config{
		Env:             env,
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		MaxRequestBytes: getEnvInt64("MAX_REQUEST_BYTES", 10*1024*1024),
		UIRedirectURL:   getEnv("UI_REDIRECT_URL", ""),

		JWTSecret:          secret,
		AccessTokenTTL:     getEnvDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		DatabaseURL: dbURL,
		RedisURL:    getEnv("REDIS_URL", ""),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		QueueBackend:      normalizeQueueBackend(getEnv("QUEUE_BACKEND", "")),
		SQSQueueURL:       getEnv("SQS_QUEUE_URL", ""),
		RedisQueueKey:     getEnv("REDIS_QUEUE_KEY", "veriglow:tasks"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),

		ModelServerURL:  getEnv("MODEL_SERVER_URL", "http://localhost:11434"),
		ModelName:       getEnv("MODEL_NAME", "veriglow-detect"),
		ModelTimeout:    getEnvDuration("MODEL_TIMEOUT", 120*time.Second),
		ChatModel:       getEnv("CHAT_MODEL", "llama3.2:1b"),
		FactCheckAPIKey: getEnv("FACTCHECK_API_KEY", ""),
		FactCheckURL:    getEnv("FACTCHECK_URL", "https://factchecktools.googleapis.com/v1alpha1/claims:search"),
		NewsAPIKey:      getEnv("NEWS_API_KEY", ""),
		TranslateURL:    getEnv("TRANSLATE_URL", ""),
		SearchURL:       getEnv("SEARCH_URL", ""),

		BillingURL:           getEnv("BILLING_URL", "https://api.stripe.com"),
		BillingAPIKey:        getEnv("BILLING_API_KEY", ""),
		BillingWebhookSecret: getEnv("BILLING_WEBHOOK_SECRET", ""),

		RateLimitDefault: getEnvInt("RATE_LIMIT_DEFAULT", 100),
		RateLimitAnalyze: getEnvInt("RATE_LIMIT_ANALYZE", 20),
		RateLimitChat:    getEnvInt("RATE_LIMIT_CHAT", 30),
		RateLimitLogin:   getEnvInt("RATE_LIMIT_LOGIN", 5),

		LockoutMaxAttempts: getEnvInt("LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutWindow:      getEnvDuration("LOCKOUT_WINDOW", 15*time.Minute),
		LockoutDuration:    getEnvDuration("LOCKOUT_DURATION", 30*time.Minute),
		RetentionDays:      getEnvInt("RETENTION_DAYS", 365),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// Bare numbers are treated as minutes to match the original deployment env.
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	return def
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
	case "development", "dev":
		return "dev"
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

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "redis":
		return "redis"
	default:
		return ""
	}
}

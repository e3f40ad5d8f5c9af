package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    string
	MongoURI      string
	MongoDatabase string
	// StoreDriver is "mongo" or "memory".
	StoreDriver string
	RedisURL    string

	JWTSecret     string
	SessionCookie string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	PaymentCurrency   string
	GatewayTimeout    time.Duration

	// NotificationTransport is "redis", "http" or "log".
	NotificationTransport string
	NotificationChannel   string
	NotifiServiceURL      string

	JobLockTTL           time.Duration
	WorkerSearchCacheTTL time.Duration
	LedgerAuditInterval  time.Duration

	AllowedOrigins []string
	LogLevel       string
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", ":8001"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase: getEnv("MONGO_DATABASE", "handyman"),
		StoreDriver:   getEnv("STORE_DRIVER", "mongo"),
		RedisURL:      strings.Trim(os.Getenv("REDIS_URL"), "\""),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		SessionCookie: getEnv("SESSION_COOKIE", "session"),

		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		PaymentCurrency:   getEnv("PAYMENT_CURRENCY", "INR"),
		GatewayTimeout:    getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),

		NotificationTransport: getEnv("NOTIFICATION_TRANSPORT", "redis"),
		NotificationChannel:   getEnv("NOTIFICATION_CHANNEL", "job_events"),
		NotifiServiceURL:      strings.Trim(os.Getenv("NOTIFI_SERVICE_URL"), "\""),

		JobLockTTL:           getEnvDuration("JOB_LOCK_TTL", 10*time.Second),
		WorkerSearchCacheTTL: getEnvDuration("WORKER_SEARCH_CACHE_TTL", 5*time.Minute),
		LedgerAuditInterval:  getEnvDuration("LEDGER_AUDIT_INTERVAL", 0),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs := getEnvInt(key, -1); secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

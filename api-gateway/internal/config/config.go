package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	JobServiceURL  string
	JWTSecret      string
	SessionCookie  string
	AllowedOrigins []string
	LogLevel       string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("GATEWAY_PORT", ":8080"),
		JobServiceURL:  strings.TrimRight(getEnv("JOB_SERVICE_URL", "http://job-service:8001"), "/"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		SessionCookie:  getEnv("SESSION_COOKIE", "session"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if v := strings.Trim(os.Getenv(key), "\""); v != "" {
		return v
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("JOB_LOCK_TTL", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := LoadConfig()
	if cfg.ServerPort != ":8001" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.JobLockTTL != 10*time.Second {
		t.Errorf("JobLockTTL = %v", cfg.JobLockTTL)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"http://localhost:3000"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"30s", 30 * time.Second},
		{"90", 90 * time.Second},
		{"0", 0},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.raw)
		if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.example , ,https://b.example")
	got := getEnvList("TEST_LIST", nil)
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("getEnvList = %v, want %v", got, want)
	}

	t.Setenv("TEST_LIST", " , ")
	if got := getEnvList("TEST_LIST", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("blank list = %v", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvString(t *testing.T) {
	key := "TEST_ENV_STRING"
	val := "test_value"
	os.Setenv(key, val)
	defer os.Unsetenv(key)

	if got := getEnvString(key, "default"); got != val {
		t.Errorf("getEnvString() = %q, want %q", got, val)
	}

	if got := getEnvString("NON_EXISTENT", "default"); got != "default" {
		t.Errorf("getEnvString() = %q, want %q", got, "default")
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_ENV_INT"

	tests := []struct {
		name   string
		envVal string
		want   int
	}{
		{"Valid", "8", 8},
		{"Invalid", "eight", 5},
		{"Empty", "", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				os.Setenv(key, tt.envVal)
				defer os.Unsetenv(key)
			} else {
				os.Unsetenv(key)
			}

			if got := getEnvInt(key, 5); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_ENV_DURATION"

	tests := []struct {
		name       string
		envVal     string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"ValidDuration", "1m", time.Second, time.Minute},
		{"ValidSeconds", "60", time.Second, 60 * time.Second},
		{"Invalid", "invalid", time.Second, time.Second},
		{"Empty", "", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				os.Setenv(key, tt.envVal)
				defer os.Unsetenv(key)
			} else {
				os.Unsetenv(key)
			}

			if got := getEnvDuration(key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir")

	if err := ensureDir(path); err != nil {
		t.Fatalf("ensureDir() failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("directory was not created")
	}

	if err := ensureDir(""); err != nil {
		t.Error("ensureDir(\"\") should not error")
	}
}

func TestGetDefaultStorePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Skipping test because user home dir cannot be found")
	}

	expected := filepath.Join(home, ".config", "seriesdash", "seriesdash.db")
	if got := getDefaultStorePath(); got != expected {
		t.Errorf("getDefaultStorePath() = %q, want %q", got, expected)
	}
}

func TestGetEnvPaths(t *testing.T) {
	paths := getEnvPaths()
	if len(paths) == 0 {
		t.Error("getEnvPaths() returned empty list")
	}

	// Basic check that it contains current directory
	cwd, _ := os.Getwd()
	found := false
	for _, p := range paths {
		if p == filepath.Join(cwd, ".env") {
			found = true
			break
		}
	}
	if !found {
		t.Error("getEnvPaths() missing current directory .env")
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"API_BASE_URL", "DATA_DIR", "STORE_PATH", "PAIR_CONCURRENCY",
		"MAX_CONCURRENT_KINDS", "TOLERANCE_MINUTES", "PLUGIN_CACHE_TTL",
		"CORRUPT_DATA_POLICY",
	} {
		os.Unsetenv(key)
	}

	tmpDir := t.TempDir()
	os.Setenv("STORE_PATH", filepath.Join(tmpDir, "seriesdash.db"))
	defer os.Unsetenv("STORE_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, defaultAPIBaseURL)
	}
	if cfg.PairConcurrency != defaultPairConcurrency {
		t.Errorf("PairConcurrency = %d, want %d", cfg.PairConcurrency, defaultPairConcurrency)
	}
	if cfg.PluginCacheTTL != defaultPluginCacheTTL {
		t.Errorf("PluginCacheTTL = %v, want %v", cfg.PluginCacheTTL, defaultPluginCacheTTL)
	}
	if cfg.CorruptDataPolicy != "refetch" {
		t.Errorf("CorruptDataPolicy = %q, want refetch", cfg.CorruptDataPolicy)
	}
}

func TestLoad_Overrides(t *testing.T) {
	tmpDir := t.TempDir()
	os.Setenv("API_BASE_URL", "http://stats.example.com")
	os.Setenv("STORE_PATH", filepath.Join(tmpDir, "s.db"))
	os.Setenv("PAIR_CONCURRENCY", "4")
	os.Setenv("CORRUPT_DATA_POLICY", "wait")
	defer func() {
		for _, key := range []string{"API_BASE_URL", "STORE_PATH", "PAIR_CONCURRENCY", "CORRUPT_DATA_POLICY"} {
			os.Unsetenv(key)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.APIBaseURL != "http://stats.example.com" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.PairConcurrency != 4 {
		t.Errorf("PairConcurrency = %d, want 4", cfg.PairConcurrency)
	}
	if cfg.CorruptDataPolicy != "wait" {
		t.Errorf("CorruptDataPolicy = %q, want wait", cfg.CorruptDataPolicy)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tmpDir := t.TempDir()
	os.Setenv("STORE_PATH", filepath.Join(tmpDir, "s.db"))
	defer os.Unsetenv("STORE_PATH")

	tests := []struct {
		key   string
		value string
	}{
		{"CORRUPT_DATA_POLICY", "panic"},
		{"PAIR_CONCURRENCY", "0"},
		{"MAX_CONCURRENT_KINDS", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			os.Setenv(tt.key, tt.value)
			defer os.Unsetenv(tt.key)

			if _, err := Load(); err == nil {
				t.Errorf("Load() should reject %s=%s", tt.key, tt.value)
			}
		})
	}
}

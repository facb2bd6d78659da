package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("CONSOLE_BASE_URL", "http://localhost:9999")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Micro {
		t.Error("Micro should default to true")
	}
	if cfg.AccessMode != "backend" || cfg.HomePath != "/analytics" {
		t.Errorf("access = %q %q", cfg.AccessMode, cfg.HomePath)
	}
	if cfg.ChunkSize != 5<<20 || cfg.ChunkAttempts != 3 {
		t.Errorf("chunks = %d %d", cfg.ChunkSize, cfg.ChunkAttempts)
	}
	if cfg.UniqueDebounce != 500*time.Millisecond || cfg.Timeout != 30*time.Second {
		t.Errorf("durations = %v %v", cfg.UniqueDebounce, cfg.Timeout)
	}
	if cfg.OAuth2Scope != "server" || cfg.UploadPath != "/ai/reviewDocument" {
		t.Errorf("scope/upload = %q %q", cfg.OAuth2Scope, cfg.UploadPath)
	}
	if cfg.Export.Backend != "local" {
		t.Errorf("export backend = %q", cfg.Export.Backend)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("CONSOLE_BASE_URL", "https://console.example.com")
	t.Setenv("CONSOLE_MICRO", "false")
	t.Setenv("CONSOLE_ACCESS_MODE", "mixed")
	t.Setenv("CONSOLE_CHUNK_SIZE", "1024")
	t.Setenv("CONSOLE_UNIQUE_DEBOUNCE", "1s")
	t.Setenv("EXPORT_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "exports")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Micro || cfg.AccessMode != "mixed" || cfg.ChunkSize != 1024 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.UniqueDebounce != time.Second {
		t.Errorf("debounce = %v", cfg.UniqueDebounce)
	}
	if cfg.Export.S3Bucket != "exports" {
		t.Errorf("bucket = %q", cfg.Export.S3Bucket)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			BaseURL:       "http://localhost",
			AccessMode:    "backend",
			ChunkSize:     1,
			ChunkAttempts: 1,
			OAuth2Client:  "a:b",
			Export:        ExportConfig{Backend: "local"},
		}
	}
	tests := []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing base", func(c *Config) { c.BaseURL = "" }, "CONSOLE_BASE_URL is required"},
		{"relative base", func(c *Config) { c.BaseURL = "/api" }, "not an absolute URL"},
		{"bad mode", func(c *Config) { c.AccessMode = "both" }, "CONSOLE_ACCESS_MODE"},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, "CONSOLE_CHUNK_SIZE"},
		{"zero attempts", func(c *Config) { c.ChunkAttempts = 0 }, "CONSOLE_CHUNK_ATTEMPTS"},
		{"client without secret", func(c *Config) { c.OAuth2Client = "pig" }, "id:secret"},
		{"s3 without bucket", func(c *Config) { c.Export.Backend = "s3" }, "S3_BUCKET"},
		{"unknown export", func(c *Config) { c.Export.Backend = "ftp" }, "EXPORT_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mod(&c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CONSOLE_TEST_FROM_FILE=yes\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONSOLE_TEST_FROM_FILE", "")
	os.Unsetenv("CONSOLE_TEST_FROM_FILE")

	n, err := LoadEnvFiles([]string{path, filepath.Join(dir, ".env.local")})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("loaded %d files, want 1", n)
	}
	if got := os.Getenv("CONSOLE_TEST_FROM_FILE"); got != "yes" {
		t.Errorf("CONSOLE_TEST_FROM_FILE = %q", got)
	}
}

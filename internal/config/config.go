// Package config loads console configuration from environment variables,
// optionally preloaded from .env files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFiles are read, when present, before the environment is parsed.
// Variables already set in the environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config holds all console configuration.
type Config struct {
	// Backend
	BaseURL      string        `env:"CONSOLE_BASE_URL"`
	Timeout      time.Duration `env:"CONSOLE_TIMEOUT" envDefault:"30s"`
	Micro        bool          `env:"CONSOLE_MICRO" envDefault:"true"`
	OAuth2Client string        `env:"CONSOLE_OAUTH2_CLIENT" envDefault:"pig:pig"`
	OAuth2Scope  string        `env:"CONSOLE_OAUTH2_SCOPE" envDefault:"server"`
	PwdEncKey    string        `env:"CONSOLE_PWD_ENC_KEY"`

	// Credentials
	Username string `env:"CONSOLE_USERNAME"`
	Password string `env:"CONSOLE_PASSWORD"`
	Token    string `env:"CONSOLE_TOKEN"`

	// Access
	AccessMode string `env:"CONSOLE_ACCESS_MODE" envDefault:"backend"`
	HomePath   string `env:"CONSOLE_HOME_PATH" envDefault:"/analytics"`

	// Uploads
	UploadPath    string `env:"CONSOLE_UPLOAD_PATH" envDefault:"/ai/reviewDocument"`
	ChunkSize     int64  `env:"CONSOLE_CHUNK_SIZE" envDefault:"5242880"`
	ChunkWorkers  int    `env:"CONSOLE_CHUNK_WORKERS" envDefault:"3"`
	ChunkAttempts int    `env:"CONSOLE_CHUNK_ATTEMPTS" envDefault:"3"`

	// Validation
	UniqueDebounce time.Duration `env:"CONSOLE_UNIQUE_DEBOUNCE" envDefault:"500ms"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Metrics, served only when set
	MetricsAddr string `env:"METRICS_ADDR"`

	Export ExportConfig
}

// ExportConfig selects where exported files are written.
type ExportConfig struct {
	Backend   string `env:"EXPORT_BACKEND" envDefault:"local"`
	LocalPath string `env:"EXPORT_LOCAL_PATH" envDefault:"."`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Prefix    string `env:"S3_PREFIX"`
}

// LoadEnvFiles loads the files that exist and returns how many did.
func LoadEnvFiles(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files, parses the environment and validates the result.
func Load() (*Config, error) {
	if _, err := LoadEnvFiles(DefaultEnvFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot have a usable default.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("CONSOLE_BASE_URL is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("CONSOLE_BASE_URL %q is not an absolute URL", c.BaseURL))
	}
	switch c.AccessMode {
	case "frontend", "backend", "mixed":
	default:
		errs = append(errs, fmt.Errorf("CONSOLE_ACCESS_MODE %q must be frontend, backend or mixed", c.AccessMode))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CONSOLE_CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkAttempts < 1 {
		errs = append(errs, fmt.Errorf("CONSOLE_CHUNK_ATTEMPTS must be at least 1, got %d", c.ChunkAttempts))
	}
	if c.OAuth2Client != "" && !strings.Contains(c.OAuth2Client, ":") {
		errs = append(errs, errors.New("CONSOLE_OAUTH2_CLIENT must be id:secret"))
	}
	switch c.Export.Backend {
	case "local":
	case "s3":
		if c.Export.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 export backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("EXPORT_BACKEND %q must be local or s3", c.Export.Backend))
	}
	return errors.Join(errs...)
}

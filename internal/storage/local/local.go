// Package local provides a local filesystem export sink.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmake-zxb/jk-ui/internal/metrics"
)

// Config holds local sink settings.
type Config struct {
	RootPath   string
	CreateDirs bool
}

// Sink writes objects below a root directory.
type Sink struct {
	rootPath   string
	createDirs bool
}

// New creates a local sink. The root must exist unless CreateDirs is set.
func New(cfg Config) (*Sink, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Sink{rootPath: cfg.RootPath, createDirs: cfg.CreateDirs}, nil
}

func (s *Sink) fullPath(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("key %q escapes the export directory", key)
	}
	return filepath.Join(s.rootPath, rel), nil
}

// PutObject writes body to a temp file and renames it into place, so a
// failed export never leaves a partial file under key.
func (s *Sink) PutObject(_ context.Context, key string, body io.Reader, _ int64) (int64, error) {
	start := time.Now()
	n, err := s.put(key, body)
	metrics.RecordExport(s.Type(), n, time.Since(start), err == nil)
	return n, err
}

func (s *Sink) put(key string, body io.Reader) (int64, error) {
	path, err := s.fullPath(key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)

	if s.createDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create dirs for %s: %w", key, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".console-export-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("close temp for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("rename temp to %s: %w", key, err)
	}
	return n, nil
}

// Location returns the file path of key.
func (s *Sink) Location(key string) string {
	if p, err := s.fullPath(key); err == nil {
		return p
	}
	return key
}

// Type returns "local".
func (s *Sink) Type() string { return "local" }

// Close is a no-op.
func (s *Sink) Close() error { return nil }

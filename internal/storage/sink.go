// Package storage defines the Sink interface that exported files are
// written to, and picks a backend from configuration.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/jmake-zxb/jk-ui/internal/config"
	"github.com/jmake-zxb/jk-ui/internal/storage/local"
	s3sink "github.com/jmake-zxb/jk-ui/internal/storage/s3"
)

// Sink stores exported objects.
type Sink interface {
	// PutObject writes body under key. Size is -1 when unknown.
	// It returns the number of bytes stored.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) (int64, error)

	// Location describes where key ends up, for display.
	Location(key string) string

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the sink.
	Close() error
}

var (
	_ Sink = (*local.Sink)(nil)
	_ Sink = (*s3sink.Sink)(nil)
)

// NewSink creates the sink selected by cfg.Backend.
func NewSink(ctx context.Context, cfg config.ExportConfig) (Sink, error) {
	switch cfg.Backend {
	case "", "local":
		return local.New(local.Config{RootPath: cfg.LocalPath, CreateDirs: true})
	case "s3":
		return s3sink.New(ctx, s3sink.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown export backend: %s", cfg.Backend)
	}
}

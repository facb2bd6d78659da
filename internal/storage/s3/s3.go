// Package s3 provides an S3-compatible export sink.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/metrics"
)

// Config holds S3 connection settings. An empty Endpoint uses AWS;
// anything else (MinIO and friends) is addressed path-style.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	// Prefix is prepended to every key.
	Prefix string
}

// Sink writes objects to one bucket.
type Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3 sink.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *Sink) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// PutObject uploads body. Bodies of unknown size, or that cannot seek,
// are spooled to a temp file first so the request can be signed.
func (s *Sink) PutObject(ctx context.Context, key string, body io.Reader, size int64) (int64, error) {
	start := time.Now()
	n, err := s.put(ctx, key, body, size)
	metrics.RecordExport(s.Type(), n, time.Since(start), err == nil)
	if err != nil {
		return 0, err
	}
	logging.Debug("S3 put object",
		zap.String("bucket", s.bucket),
		zap.String("key", s.objectKey(key)),
		zap.Int64("size", n),
		zap.Duration("duration", time.Since(start)))
	return n, nil
}

func (s *Sink) put(ctx context.Context, key string, body io.Reader, size int64) (int64, error) {
	rs, ok := body.(io.ReadSeeker)
	if !ok || size < 0 {
		f, n, err := spool(body)
		if err != nil {
			return 0, fmt.Errorf("spool %s: %w", key, err)
		}
		defer func() {
			f.Close()
			os.Remove(f.Name())
		}()
		rs, size = f, n
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          rs,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return 0, fmt.Errorf("put object %s: %w", key, err)
	}
	return size, nil
}

func spool(r io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "console-export-*.tmp")
	if err != nil {
		return nil, 0, err
	}
	n, err := io.Copy(f, r)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	return f, n, nil
}

// Location returns the s3:// URI of key.
func (s *Sink) Location(key string) string {
	return "s3://" + s.bucket + "/" + s.objectKey(key)
}

// Type returns "s3".
func (s *Sink) Type() string { return "s3" }

// Close is a no-op.
func (s *Sink) Close() error { return nil }

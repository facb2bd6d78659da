package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/metrics"
	"github.com/jmake-zxb/jk-ui/pkg/protocol"
)

var (
	// ErrCheckFailed means the server's chunk state could not be read.
	// Nothing has been sent.
	ErrCheckFailed = errors.New("upload: check failed")

	// ErrIncomplete means merge was refused locally because some chunk
	// was never acknowledged.
	ErrIncomplete = errors.New("upload: chunks missing")
)

// Chunk is one chunk upload request.
type Chunk struct {
	MD5       string
	FileName  string
	Index     int
	Total     int
	ChunkSize int64
	Size      int64
	Body      io.Reader
}

// Backend is the server side of the protocol.
type Backend interface {
	CheckFile(ctx context.Context, md5 string) (*protocol.CheckResult, error)
	UploadChunk(ctx context.Context, c Chunk) error
	MergeFile(ctx context.Context, p protocol.MergeParams) (*protocol.MergedFile, error)
}

// ChunkError collects the chunks that failed in one Upload call. The
// session keeps the ones that succeeded, so calling Upload again sends
// only these.
type ChunkError struct {
	Failed map[int]error
}

func (e *ChunkError) Error() string {
	idx := e.Indices()
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("chunk %d: %v", i, e.Failed[i]))
	}
	return fmt.Sprintf("upload: %d chunk(s) failed: %s", len(idx), strings.Join(parts, "; "))
}

// Unwrap exposes the individual chunk errors to errors.Is and errors.As.
func (e *ChunkError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, i := range e.Indices() {
		out = append(out, e.Failed[i])
	}
	return out
}

// Indices returns the failed chunk indices in ascending order.
func (e *ChunkError) Indices() []int {
	out := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Coordinator drives check, chunk and merge for one file at a time.
// It never retries; callers re-run Upload with the same session.
type Coordinator struct {
	Backend     Backend
	ChunkSize   int64
	Concurrency int // 0 means no limit

	// OnChunk, if set, is called after each chunk request finishes. It may
	// be called from several goroutines at once.
	OnChunk func(index int, err error)
}

// Prepare digests f and returns a fresh session for it.
func (c *Coordinator) Prepare(ctx context.Context, f *File) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum, err := Digest(io.NewSectionReader(f.Reader, 0, f.Size))
	if err != nil {
		return nil, err
	}
	return NewSession(sum, f.Name, f.Size, c.chunkSize()), nil
}

func (c *Coordinator) chunkSize() int64 {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

// Upload sends the chunks the server lacks and merges them. A file the
// server already holds returns at once with Deduplicated set.
func (c *Coordinator) Upload(ctx context.Context, f *File, s *Session) (*protocol.MergedFile, error) {
	log := logging.WithContext(ctx).With(
		zap.String("file", s.FileName),
		zap.String("md5", s.FileHash),
	)

	check, err := c.Backend.CheckFile(ctx, s.FileHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}
	if check.Uploaded {
		metrics.RecordDedup()
		log.Info("file already stored, skipping upload")
		return &protocol.MergedFile{
			MD5:          s.FileHash,
			FileName:     s.FileName,
			Size:         s.Size,
			Deduplicated: true,
		}, nil
	}

	before := len(s.Uploaded())
	s.MarkUploaded(check.UploadedChunks...)
	if skipped := len(s.Uploaded()) - before; skipped > 0 {
		metrics.RecordChunksSkipped(skipped)
	}

	missing := s.Missing()
	log.Debug("uploading chunks",
		zap.Int("total", s.TotalChunks),
		zap.Int("missing", len(missing)),
	)

	if err := c.sendChunks(ctx, f, s, missing); err != nil {
		return nil, err
	}
	if !s.Complete() {
		return nil, fmt.Errorf("%w: %v", ErrIncomplete, s.Missing())
	}

	merged, err := c.Backend.MergeFile(ctx, protocol.MergeParams{MD5: s.FileHash, FileName: s.FileName})
	metrics.RecordMerge(err == nil)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", s.FileName, err)
	}
	if merged == nil {
		merged = &protocol.MergedFile{}
	}
	if merged.MD5 == "" {
		merged.MD5 = s.FileHash
	}
	if merged.FileName == "" {
		merged.FileName = s.FileName
	}
	log.Info("upload merged", zap.Int("chunks", s.TotalChunks))
	return merged, nil
}

// sendChunks uploads indices concurrently and collects every failure.
func (c *Coordinator) sendChunks(ctx context.Context, f *File, s *Session, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	ranges := Plan(s.Size, s.ChunkSize)

	var (
		mu     sync.Mutex
		failed = make(map[int]error)
	)

	var g errgroup.Group
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for _, idx := range indices {
		r := ranges[idx]
		g.Go(func() error {
			err := ctx.Err()
			if err == nil {
				err = c.Backend.UploadChunk(ctx, Chunk{
					MD5:       s.FileHash,
					FileName:  s.FileName,
					Index:     r.Index,
					Total:     s.TotalChunks,
					ChunkSize: s.ChunkSize,
					Size:      r.Size,
					Body:      f.section(r),
				})
			}
			metrics.RecordChunkUpload(r.Size, err == nil)
			if err != nil {
				mu.Lock()
				failed[r.Index] = err
				mu.Unlock()
			} else {
				s.MarkUploaded(r.Index)
			}
			if c.OnChunk != nil {
				c.OnChunk(r.Index, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return &ChunkError{Failed: failed}
	}
	return nil
}

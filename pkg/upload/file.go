// Package upload sends large files to the backend in resumable chunks.
package upload

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultChunkSize matches the backend's default chunk size.
const DefaultChunkSize int64 = 5 * 1024 * 1024

// Digest returns the hex MD5 of everything read from r. The backend keys
// resumable sessions on it.
func Digest(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File is a local file to upload.
type File struct {
	Name   string
	Size   int64
	Reader io.ReaderAt

	closer io.Closer
}

// Open opens a file on disk for upload. The caller must Close it.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &File{
		Name:   filepath.Base(path),
		Size:   info.Size(),
		Reader: f,
		closer: f,
	}, nil
}

// Close releases the underlying file, if any.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func (f *File) section(r Range) *io.SectionReader {
	return io.NewSectionReader(f.Reader, r.Offset, r.Size)
}

// Range is one chunk's byte range.
type Range struct {
	Index  int
	Offset int64
	Size   int64
}

// Plan splits size bytes into ceil(size/chunkSize) ranges. An empty file
// still yields one empty range so the server has something to merge.
func Plan(size, chunkSize int64) []Range {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if size <= 0 {
		return []Range{{Index: 0}}
	}
	total := int((size + chunkSize - 1) / chunkSize)
	ranges := make([]Range, total)
	for i := range ranges {
		off := int64(i) * chunkSize
		n := chunkSize
		if off+n > size {
			n = size - off
		}
		ranges[i] = Range{Index: i, Offset: off, Size: n}
	}
	return ranges
}

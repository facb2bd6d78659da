package upload

import (
	"sort"
	"sync"
)

// Session tracks which chunks of one file the server has acknowledged.
// It is safe for concurrent use and survives across Upload attempts.
type Session struct {
	FileHash    string `json:"md5"`
	FileName    string `json:"fileName"`
	Size        int64  `json:"size"`
	ChunkSize   int64  `json:"chunkSize"`
	TotalChunks int    `json:"totalChunks"`

	mu       sync.Mutex
	uploaded map[int]bool
}

// NewSession creates a session for a file with the given digest.
func NewSession(hash, name string, size, chunkSize int64) *Session {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Session{
		FileHash:    hash,
		FileName:    name,
		Size:        size,
		ChunkSize:   chunkSize,
		TotalChunks: len(Plan(size, chunkSize)),
		uploaded:    make(map[int]bool),
	}
}

// MarkUploaded records acknowledged chunk indices. Out-of-range indices
// are ignored.
func (s *Session) MarkUploaded(indices ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploaded == nil {
		s.uploaded = make(map[int]bool)
	}
	for _, i := range indices {
		if i >= 0 && i < s.TotalChunks {
			s.uploaded[i] = true
		}
	}
}

// Uploaded returns the acknowledged indices in ascending order.
func (s *Session) Uploaded() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.uploaded))
	for i := range s.uploaded {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Missing returns the indices still to send, in ascending order.
func (s *Session) Missing() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i := 0; i < s.TotalChunks; i++ {
		if !s.uploaded[i] {
			out = append(out, i)
		}
	}
	return out
}

// Complete reports whether every chunk has been acknowledged.
func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploaded) == s.TotalChunks
}

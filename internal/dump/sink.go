package dump

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codefionn/sqmean/internal/aggregate"
	"github.com/natefinch/atomic"
)

// Sink receives encoded snapshots.
type Sink interface {
	WriteSnapshot(data []byte) error
}

// FileSink replaces a file with each snapshot. Readers never observe a
// partially written file.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the destination file.
func (s *FileSink) Path() string {
	return s.path
}

// WriteSnapshot writes data to a temporary file next to the destination and
// renames it into place.
func (s *FileSink) WriteSnapshot(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write dump %s: %w", s.path, err)
	}
	return nil
}

// ReadFile reads and decodes a snapshot file.
func ReadFile(path string) ([]aggregate.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// MemorySink keeps the last snapshot in memory.
type MemorySink struct {
	mu    sync.Mutex
	last  []byte
	count int
	err   error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// WriteSnapshot stores a copy of data, or returns the configured failure.
func (s *MemorySink) WriteSnapshot(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.last = append(s.last[:0], data...)
	s.count++
	return nil
}

// Fail makes subsequent writes return err. A nil err clears the failure.
func (s *MemorySink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Last returns a copy of the most recent snapshot.
func (s *MemorySink) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.last...)
}

// Count returns the number of snapshots written.
func (s *MemorySink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

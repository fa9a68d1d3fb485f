package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink appends one JSON object per line to a local file. It is meant for
// development and offline deployments.
type JSONLSink struct {
	path     string
	mu       sync.Mutex
	f        *os.File
	lastHash string
	sequence int64
	// torn is set when the file ends without a newline, e.g. after a crash
	torn bool
}

// NewJSONLSink opens or creates path, creating parent directories. An
// existing file is scanned so the chain continues from its last line.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	s := &JSONLSink{path: path}
	if err := s.loadTail(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	s.f = f
	return s, nil
}

func (s *JSONLSink) loadTail() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read audit file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		s.lastHash = e.Hash
		s.sequence = e.Sequence
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat audit file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("failed to read audit file: %w", err)
	}
	s.torn = last[0] != '\n'
	return nil
}

// Append writes the entry as a single line
func (s *JSONLSink) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return os.ErrClosed
	}

	entry.Sequence = s.sequence + 1
	entry.Seal(s.lastHash)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	data = append(data, '\n')
	if s.torn {
		data = append([]byte{'\n'}, data...)
	}
	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	s.torn = false

	s.sequence = entry.Sequence
	s.lastHash = entry.Hash
	return nil
}

// Close closes the underlying file
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

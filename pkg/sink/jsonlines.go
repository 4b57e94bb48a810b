package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSONLines writes one JSON object per line.
type JSONLines struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewJSONLines writes to w. Close does not close w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

// OpenJSONLines creates (or truncates) the file at path.
func OpenJSONLines(path string) (*JSONLines, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}
	return &JSONLines{w: f, closer: f}, nil
}

// Push writes the item as a single line.
func (s *JSONLines) Push(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(item)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("write item: %w", err)
	}
	itemsPushed.WithLabelValues("jsonl", item.DataType).Inc()
	return nil
}

// Close closes the underlying file, if the sink opened it.
func (s *JSONLines) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

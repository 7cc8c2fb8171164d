// Package trace writes an append-only JSONL log of parse and resolution
// calls. Tracing is best-effort: a trace failure never fails the request.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry represents a single trace record.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"ts"`
	Op        string    `json:"op"`                  // parse, resolve, expand, targets
	Path      string    `json:"path"`                // requested path
	Canonical string    `json:"canonical,omitempty"` // canonical stack encoding
	Token     string    `json:"token,omitempty"`     // token or template
	Paths     []string  `json:"paths,omitempty"`     // resolved result paths
	Error     string    `json:"error,omitempty"`     // error message if failed
	Duration  float64   `json:"duration_ms"`
}

// Logger is an append-only trace log writer.
type Logger struct {
	mu   sync.Mutex
	path string
	seq  uint64
}

// NewLogger opens or creates a trace log at the given path. It reads the
// last entry to resume the sequence counter.
func NewLogger(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}

	l := &Logger{path: path}

	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		lines := splitLines(data)
		if len(lines) > 0 {
			var last Entry
			if err := json.Unmarshal(lines[len(lines)-1], &last); err == nil {
				l.seq = last.Seq
			}
		}
	}

	return l, nil
}

// Log appends one trace entry.
func (l *Logger) Log(op, path, canonical, token string, paths []string, errMsg string, duration time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	entry := Entry{
		Seq:       l.seq,
		Time:      time.Now().UTC(),
		Op:        op,
		Path:      path,
		Canonical: canonical,
		Token:     token,
		Paths:     paths,
		Error:     errMsg,
		Duration:  float64(duration.Microseconds()) / 1000.0,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal trace entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open trace log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write trace entry: %w", err)
	}
	return nil
}

// Read returns the entries currently in the log, oldest first.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read trace log: %w", err)
	}
	var entries []Entry
	for _, line := range splitLines(data) {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return entries, fmt.Errorf("corrupt trace entry after seq %d: %w", lastSeq(entries), err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func lastSeq(entries []Entry) uint64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Seq
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

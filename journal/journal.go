// Package journal provides the append-only audit trail of engine operations.
// Entries are written as JSONL so the trail can be tailed, shipped, or
// replayed with standard tooling.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Entry records one committed engine operation.
type Entry struct {
	Time        time.Time         `json:"timestamp"`
	Op          string            `json:"op"`
	Engine      string            `json:"engine,omitempty"`
	Caller      string            `json:"caller,omitempty"`
	ScheduleID  string            `json:"schedule_id,omitempty"`
	Beneficiary string            `json:"beneficiary,omitempty"`
	Amount      string            `json:"amount,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Operation names used in entries.
const (
	OpScheduleCreated = "schedule_created"
	OpTokensReleased  = "tokens_released"
	OpScheduleRevoked = "schedule_revoked"
	OpWithdrawal      = "withdrawal"
	OpPoolLocked      = "pool_locked"
	OpLockedReleased  = "locked_released"
)

// Recorder accepts committed entries. Implementations must tolerate being
// called from a single serialized writer.
type Recorder interface {
	Record(e Entry) error
}

// Nop discards all entries.
type Nop struct{}

func (Nop) Record(Entry) error { return nil }

// Writer appends entries to an io.Writer, one JSON object per line.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	c   io.Closer
}

// NewWriter wraps an io.Writer as a journal sink.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// OpenFile opens (or creates) a journal file for appending.
func OpenFile(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Writer{out: f, c: f}, nil
}

// Record appends one entry.
func (w *Writer) Record(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	return nil
}

// Close closes the underlying file if the writer owns one.
func (w *Writer) Close() error {
	if w.c == nil {
		return nil
	}
	return w.c.Close()
}

// Read parses all entries from a JSONL stream.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return entries, nil
}

// ReadFile parses all entries from a journal file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()
	return Read(f)
}

var (
	_ Recorder = (*Writer)(nil)
	_ Recorder = Nop{}
)

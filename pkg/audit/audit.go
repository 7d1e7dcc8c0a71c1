// pkg/audit/audit.go
//
// Append-only NDJSON audit trail. Every batch operation emits one
// record per object; sinks must never cause enforcement to fail, so
// callers log and drop append errors.

package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/google/uuid"
)

// Record is one audited object operation.
type Record struct {
	ID           string   `json:"id"`
	Path         string   `json:"path"`
	Kind         string   `json:"kind"`
	Mode         string   `json:"mode"`
	LevelApplied string   `json:"level_applied"`
	Policy       string   `json:"policy"`
	TimeUTC      string   `json:"time_utc"`
	UserSID      string   `json:"user_sid"`
	SDDLBefore   string   `json:"sddl_before,omitempty"`
	SDDLAfter    string   `json:"sddl_after,omitempty"`
	Status       string   `json:"status"`
	Errors       []string `json:"errors,omitempty"`
}

// NewRecord stamps a record with a fresh id and the current UTC time.
func NewRecord(path string) Record {
	return Record{
		ID:      uuid.New().String(),
		Path:    path,
		TimeUTC: time.Now().UTC().Format(time.RFC3339),
	}
}

// Sink receives audit records.
type Sink interface {
	Append(rec Record) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Append(Record) error { return nil }

// MemorySink collects records for inspection, used in tests.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func (s *MemorySink) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// NdjsonSink appends one JSON object per line to a log file. Safe for
// concurrent use by batch workers.
type NdjsonSink struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

// OpenNdjson opens the log file in append mode, creating it and its
// parent directory if needed.
func OpenNdjson(path string) (*NdjsonSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, amberr.WrapStorage(err, "audit")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, amberr.WrapStorage(err, "audit")
	}
	return &NdjsonSink{file: f, buf: bufio.NewWriter(f)}, nil
}

func (s *NdjsonSink) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return amberr.WrapStorage(err, "audit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.buf.Write(line); err != nil {
		return amberr.WrapStorage(err, "audit")
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return amberr.WrapStorage(err, "audit")
	}
	return nil
}

// Flush pushes buffered records to disk.
func (s *NdjsonSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		return amberr.WrapStorage(err, "audit")
	}
	return nil
}

// Close flushes and closes the log file.
func (s *NdjsonSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return amberr.WrapStorage(err, "audit")
	}
	if err := s.file.Close(); err != nil {
		return amberr.WrapStorage(err, "audit")
	}
	return nil
}

// Filter selects records during a read.
type Filter struct {
	Status       string
	PathContains string
	UserSID      string
}

func (f Filter) matches(rec Record) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.PathContains != "" && !strings.Contains(rec.Path, f.PathContains) {
		return false
	}
	if f.UserSID != "" && rec.UserSID != f.UserSID {
		return false
	}
	return true
}

// Read returns matching records from an NDJSON log, oldest first.
// Unparseable lines are skipped rather than failing the read.
func Read(path string, filter Filter) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, amberr.WrapStorage(err, "audit")
	}
	defer f.Close()

	var out []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if filter.matches(rec) {
			out = append(out, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, amberr.WrapStorage(err, "audit")
	}
	return out, nil
}

// Tail returns the last n records from an NDJSON log, oldest first.
func Tail(path string, n int) ([]Record, error) {
	all, err := Read(path, Filter{})
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

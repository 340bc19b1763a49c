// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// failurelog.go - Append-only sink for groups whose label patch permanently failed.
//
// One text block is written per failed group. The file is opened in append mode so
// consecutive runs accumulate into the same log, and nothing is ever rewritten.
//
// Block format:
//   [2025-03-01T12:00:00Z] label reassignment failed
//   Group ID:      0b1c...
//   Display name:  Finance
//   Error:         PATCH /groups/0b1c... failed: HTTP 400 ...
//   Error code:    Request_BadRequest
//   Error message: Invalid value specified for property 'assignedLabels'
//   ----------------------------------------------------------------

package failurelog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Separator terminates every failure block.
var Separator = strings.Repeat("-", 64)

// FailureRecord describes one group whose patch exhausted its retry budget.
type FailureRecord struct {
	GroupID          string
	GroupDisplayName string
	ErrorCode        string // Structured error code, empty when the body carried none
	ErrorMessage     string // Structured error message, empty when the body carried none
	RawError         string // Full error text of the last attempt
	Timestamp        time.Time
}

// Sink receives failure records in order.
type Sink interface {
	Append(rec FailureRecord) error
}

// Format renders rec as a log block including the trailing separator line.
func Format(rec FailureRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] label reassignment failed\n", rec.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Group ID:      %s\n", singleLine(rec.GroupID))
	fmt.Fprintf(&b, "Display name:  %s\n", singleLine(rec.GroupDisplayName))
	fmt.Fprintf(&b, "Error:         %s\n", singleLine(rec.RawError))
	if rec.ErrorCode != "" {
		fmt.Fprintf(&b, "Error code:    %s\n", singleLine(rec.ErrorCode))
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error message: %s\n", singleLine(rec.ErrorMessage))
	}
	b.WriteString(Separator)
	b.WriteString("\n")
	return b.String()
}

// singleLine keeps each field on one line of the block.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WriterSink appends formatted blocks to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Append writes one block.
func (s *WriterSink) Append(rec FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, Format(rec)); err != nil {
		return fmt.Errorf("failed to append failure record for group %s: %w", rec.GroupID, err)
	}
	s.n++
	return nil
}

// Count returns how many records were appended through this sink.
func (s *WriterSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// FileSink is a WriterSink backed by a file opened for appending.
type FileSink struct {
	*WriterSink
	file *os.File
	path string
}

// OpenFile opens (or creates) path for appending.
func OpenFile(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("failure log path cannot be empty")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure log %s: %w", path, err)
	}
	return &FileSink{WriterSink: NewWriterSink(f), file: f, path: path}, nil
}

// Path returns the file path the sink writes to.
func (s *FileSink) Path() string {
	return s.path
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []FailureRecord
}

// Append stores rec.
func (s *MemorySink) Append(rec FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of the stored records.
func (s *MemorySink) Records() []FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FailureRecord, len(s.records))
	copy(out, s.records)
	return out
}

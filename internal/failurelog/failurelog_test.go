// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package failurelog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFormat(t *testing.T) {
	t.Run("with structured error", func(t *testing.T) {
		out := Format(FailureRecord{
			GroupID:          "g-1",
			GroupDisplayName: "Finance",
			ErrorCode:        "Request_BadRequest",
			ErrorMessage:     "Invalid label",
			RawError:         "HTTP 400",
			Timestamp:        ts,
		})

		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		require.Len(t, lines, 7)
		assert.Equal(t, "[2025-03-01T12:00:00Z] label reassignment failed", lines[0])
		assert.Equal(t, "Group ID:      g-1", lines[1])
		assert.Equal(t, "Display name:  Finance", lines[2])
		assert.Equal(t, "Error:         HTTP 400", lines[3])
		assert.Equal(t, "Error code:    Request_BadRequest", lines[4])
		assert.Equal(t, "Error message: Invalid label", lines[5])
		assert.Equal(t, Separator, lines[6])
	})

	t.Run("without structured error", func(t *testing.T) {
		out := Format(FailureRecord{GroupID: "g-2", GroupDisplayName: "HR", RawError: "connection reset", Timestamp: ts})

		assert.NotContains(t, out, "Error code:")
		assert.NotContains(t, out, "Error message:")
		assert.True(t, strings.HasSuffix(out, Separator+"\n"))
	})

	t.Run("multi-line error is collapsed", func(t *testing.T) {
		out := Format(FailureRecord{
			GroupID:          "g-3",
			GroupDisplayName: "Ops",
			RawError:         "context deadline exceeded\nupdate group labels failed: HTTP 502 - <html>\n  <body>Bad Gateway</body>\n</html>",
			ErrorMessage:     "line one\r\nline two",
			Timestamp:        ts,
		})

		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		require.Len(t, lines, 6)
		assert.Equal(t, "Error:         context deadline exceeded update group labels failed: HTTP 502 - <html> <body>Bad Gateway</body> </html>", lines[3])
		assert.Equal(t, "Error message: line one line two", lines[4])
		assert.Equal(t, Separator, lines[5])
	})
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	require.NoError(t, sink.Append(FailureRecord{GroupID: "a", Timestamp: ts}))
	require.NoError(t, sink.Append(FailureRecord{GroupID: "b", Timestamp: ts}))

	assert.Equal(t, 2, sink.Count())
	assert.Equal(t, 2, strings.Count(buf.String(), Separator))
	assert.Less(t, strings.Index(buf.String(), "Group ID:      a"), strings.Index(buf.String(), "Group ID:      b"))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterSink_WriteError(t *testing.T) {
	sink := NewWriterSink(failingWriter{})
	err := sink.Append(FailureRecord{GroupID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, sink.Count())
}

func TestFileSink_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.log")

	first, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())
	require.NoError(t, first.Append(FailureRecord{GroupID: "first", Timestamp: ts}))
	require.NoError(t, first.Close())

	second, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(FailureRecord{GroupID: "second", Timestamp: ts}))
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Group ID:      first")
	assert.Contains(t, string(data), "Group ID:      second")
	assert.Equal(t, 2, strings.Count(string(data), Separator))
}

func TestOpenFile_Errors(t *testing.T) {
	_, err := OpenFile("")
	assert.Error(t, err)

	_, err = OpenFile(filepath.Join(t.TempDir(), "no", "such", "dir", "f.log"))
	assert.Error(t, err)
}

func TestMemorySink(t *testing.T) {
	sink := &MemorySink{}
	require.NoError(t, sink.Append(FailureRecord{GroupID: "x"}))

	records := sink.Records()
	require.Len(t, records, 1)
	records[0].GroupID = "mutated"
	assert.Equal(t, "x", sink.Records()[0].GroupID)
}

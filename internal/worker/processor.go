// Package worker implements the worker-side collaborators: the chunk
// processor that scans a byte range of the log file into metrics, and the
// heartbeat reporter that keeps the coordinator convinced the worker is
// alive.
package worker

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dreamware/logsift/internal/cluster"
)

// errorMarker flags a log line as an error.
const errorMarker = "ERROR"

// durationPattern matches the request timing lines, e.g.
// "2024-01-02 GET /api Request processed in 42ms".
var durationPattern = regexp.MustCompile(`Request processed in (\S+)ms`)

// ProcessChunk scans the byte range [offset, offset+length) of the file at
// path and returns its metrics. The range is expected to be line-aligned by
// the coordinator's partitioner; the processor itself just splits on
// newlines.
//
// Per line: the error marker increments the error count; a timing line
// contributes one response-time sample and one request. A timing line whose
// duration is not numeric is a local parse error — the line is skipped, not
// counted as a request, and processing continues.
//
// An unreadable file or a range that extends past end-of-file is fatal for
// the task and is returned as an error; the coordinator handles it like a
// worker failure.
func ProcessChunk(path string, offset, length int64) (cluster.ChunkMetrics, error) {
	var m cluster.ChunkMetrics

	if offset < 0 || length < 0 {
		return m, fmt.Errorf("process %s: negative range %d+%d", path, offset, length)
	}

	f, err := os.Open(path)
	if err != nil {
		return m, fmt.Errorf("process %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return m, fmt.Errorf("process %s: %w", path, err)
	}
	if offset+length > st.Size() {
		return m, fmt.Errorf("process %s: range %d+%d exceeds file size %d", path, offset, length, st.Size())
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return m, fmt.Errorf("process %s: %w", path, err)
	}

	scanner := bufio.NewScanner(io.LimitReader(f, length))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m.LineCount++
		if strings.Contains(line, errorMarker) {
			m.ErrorCount++
		}
		if match := durationPattern.FindStringSubmatch(line); match != nil {
			sample, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				// Malformed duration: skip the sample, keep the chunk.
				log.Printf("skipping malformed duration %q", match[1])
				continue
			}
			m.ResponseTimes = append(m.ResponseTimes, sample)
			m.RequestCount++
		}
	}
	if err := scanner.Err(); err != nil {
		return cluster.ChunkMetrics{}, fmt.Errorf("process %s: %w", path, err)
	}
	return m, nil
}

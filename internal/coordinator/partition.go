// Package coordinator implements the work-management engine for logsift.
// This file implements the partitioner that splits the input file into
// line-aligned byte ranges.
package coordinator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Chunk is one contiguous, line-aligned byte range of the input file.
// The set of chunks produced for a job is fixed at partition time: only the
// assignment of a chunk to a worker changes afterwards, never the ranges.
type Chunk struct {
	// Index orders chunks by file position and derives the task ID.
	Index int

	// Offset is the first byte of the range.
	Offset int64

	// Length is the size of the range in bytes. Always > 0; zero-length
	// ranges are dropped rather than emitted.
	Length int64
}

// Partition splits the file at path into at most parts line-aligned chunks
// whose union is exactly the file.
//
// Dividing the file size evenly produces boundaries that may fall mid-line,
// which would corrupt parsing on both sides of the cut. Every interior
// boundary is therefore snapped forward to the byte after the next newline
// at or past the naive offset — never backward, so no byte is ever covered
// by two chunks. The final boundary is always end-of-file.
//
// When the file has fewer lines than parts, snapped boundaries collide and
// the colliding ranges collapse; Partition then returns fewer, non-empty
// chunks rather than zero-length ones. An empty file yields zero chunks.
//
// Properties, for any file and parts >= 1:
//   - chunks are ordered by offset and non-overlapping
//   - lengths sum exactly to the file size
//   - every chunk except possibly the last ends on a newline
//
// Errors opening or reading the file abort the job before any task exists.
func Partition(path string, parts int) ([]Chunk, error) {
	if parts < 1 {
		return nil, errors.New("partition: need at least one chunk")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", path, err)
	}
	size := st.Size()
	if size == 0 {
		return nil, nil
	}

	var chunks []Chunk
	prev := int64(0)
	for i := 1; i < parts; i++ {
		naive := size * int64(i) / int64(parts)
		if naive <= prev {
			continue
		}
		boundary, err := nextLineStart(f, naive, size)
		if err != nil {
			return nil, fmt.Errorf("partition %s: %w", path, err)
		}
		if boundary <= prev || boundary >= size {
			continue
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Offset: prev, Length: boundary - prev})
		prev = boundary
	}
	chunks = append(chunks, Chunk{Index: len(chunks), Offset: prev, Length: size - prev})

	return chunks, nil
}

// nextLineStart returns the offset of the first byte after the next newline
// at or past from. If no newline exists before end-of-file it returns size,
// merging the remainder into the preceding chunk.
func nextLineStart(f *os.File, from, size int64) (int64, error) {
	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReader(f)
	skipped, err := r.ReadBytes('\n')
	if err == io.EOF {
		return size, nil
	}
	if err != nil {
		return 0, err
	}
	return from + int64(len(skipped)), nil
}

// Package coordinator provides the work-management engine.
// This file contains tests for the line-aligned partitioner.
package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLog writes content to a temp file and returns its path.
func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// checkPartition verifies the partition invariants: ordered, contiguous,
// non-empty, summing exactly to the file size, and every boundary except
// end-of-file landing just after a newline.
func checkPartition(t *testing.T, content string, chunks []Chunk) {
	t.Helper()
	size := int64(len(content))

	var total int64
	next := int64(0)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "chunk indices must be sequential")
		assert.Equal(t, next, c.Offset, "chunks must be contiguous")
		assert.Greater(t, c.Length, int64(0), "no zero-length chunks")
		if c.Offset+c.Length < size {
			assert.Equal(t, byte('\n'), content[c.Offset+c.Length-1],
				"interior boundary must follow a newline")
		}
		next = c.Offset + c.Length
		total += c.Length
	}
	assert.Equal(t, size, total, "chunk lengths must sum to the file size")
}

// TestPartitionCoversFile verifies the partition invariants across a range
// of worker counts on the same file.
func TestPartitionCoversFile(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "2024-01-02 10:00:%02d INFO Request processed in %dms\n", i%60, 10+i%25)
	}
	content := sb.String()
	path := writeLog(t, content)

	for _, parts := range []int{1, 2, 3, 5, 8, 13} {
		chunks, err := Partition(path, parts)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.LessOrEqual(t, len(chunks), parts)
		checkPartition(t, content, chunks)
	}
}

// TestPartitionSnapsForward verifies that a naive mid-line boundary moves
// forward to the next line start, never backward.
func TestPartitionSnapsForward(t *testing.T) {
	// Naive midpoint of this 8-byte file is 4, inside the first line.
	content := "aaaa\nbb\n"
	path := writeLog(t, content)

	chunks, err := Partition(path, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, int64(0), chunks[0].Offset)
	assert.Equal(t, int64(5), chunks[0].Length, "boundary must snap past the newline at offset 4")
	assert.Equal(t, int64(5), chunks[1].Offset)
	assert.Equal(t, int64(3), chunks[1].Length)
}

// TestPartitionFewerLinesThanWorkers verifies that colliding boundaries
// collapse into fewer, non-empty chunks.
func TestPartitionFewerLinesThanWorkers(t *testing.T) {
	content := "first line\nsecond line\n"
	path := writeLog(t, content)

	chunks, err := Partition(path, 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(chunks), 2)
	checkPartition(t, content, chunks)
}

// TestPartitionNoTrailingNewline verifies the final chunk absorbs a last
// line without a terminator.
func TestPartitionNoTrailingNewline(t *testing.T) {
	content := "one\ntwo\nthree"
	path := writeLog(t, content)

	chunks, err := Partition(path, 3)
	require.NoError(t, err)
	checkPartition(t, content, chunks)
}

// TestPartitionSingleWorker verifies the degenerate one-chunk case.
func TestPartitionSingleWorker(t *testing.T) {
	content := "only\nlines\nhere\n"
	path := writeLog(t, content)

	chunks, err := Partition(path, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].Offset)
	assert.Equal(t, int64(len(content)), chunks[0].Length)
}

// TestPartitionEmptyFile verifies an empty file yields zero chunks.
func TestPartitionEmptyFile(t *testing.T) {
	path := writeLog(t, "")

	chunks, err := Partition(path, 4)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// TestPartitionMissingFile verifies a missing input aborts partitioning.
func TestPartitionMissingFile(t *testing.T) {
	_, err := Partition(filepath.Join(t.TempDir(), "nope.log"), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition")
}

// TestPartitionRejectsZeroParts verifies parts must be at least one.
func TestPartitionRejectsZeroParts(t *testing.T) {
	path := writeLog(t, "x\n")
	_, err := Partition(path, 0)
	require.Error(t, err)
}

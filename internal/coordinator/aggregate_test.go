// Package coordinator provides the work-management engine.
// This file contains tests for the aggregate fold.
package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/logsift/internal/cluster"
	"github.com/dreamware/logsift/internal/worker"
)

// fixtureLog is a small file with known ground truth: 10 lines, 2 error
// lines, 3 timing lines averaging 20ms.
const fixtureLog = `2024-01-02 10:00:00 INFO Server started
2024-01-02 10:00:01 INFO Request processed in 10ms
2024-01-02 10:00:02 ERROR Database connection failed
2024-01-02 10:00:03 INFO Request processed in 20ms
2024-01-02 10:00:04 WARN Cache miss
2024-01-02 10:00:05 INFO Request processed in 30ms
2024-01-02 10:00:06 ERROR Timeout on upstream
2024-01-02 10:00:07 INFO Healthcheck ok
2024-01-02 10:00:08 INFO Shutting down worker pool
2024-01-02 10:00:09 INFO Goodbye
`

// processAll partitions the file into parts chunks, processes each, and
// folds the per-chunk metrics keyed by task ID.
func processAll(t *testing.T, path string, parts int) Aggregate {
	t.Helper()
	chunks, err := Partition(path, parts)
	require.NoError(t, err)

	results := make(map[string]cluster.ChunkMetrics, len(chunks))
	for _, c := range chunks {
		m, err := worker.ProcessChunk(path, c.Offset, c.Length)
		require.NoError(t, err)
		results[taskID(path, c.Index)] = m
	}
	return foldResults(results)
}

// TestAggregateFixture pins the fold's ground truth on the fixture file.
func TestAggregateFixture(t *testing.T) {
	path := writeLog(t, fixtureLog)

	agg := processAll(t, path, 1)
	assert.Equal(t, int64(10), agg.LineCount)
	assert.Equal(t, int64(2), agg.ErrorCount)
	assert.InDelta(t, 0.2, agg.ErrorRate, 1e-9)
	assert.Equal(t, int64(3), agg.RequestCount)
	assert.InDelta(t, 20.0, agg.AvgResponseTime, 1e-9)
	assert.Equal(t, 1, agg.ChunksCounted)
}

// TestAggregateChunkingInvariant verifies the global metric does not depend
// on how the file was split: any partition folds to the same numbers.
func TestAggregateChunkingInvariant(t *testing.T) {
	path := writeLog(t, fixtureLog)
	want := processAll(t, path, 1)

	for _, parts := range []int{2, 3, 4, 7, 10} {
		got := processAll(t, path, parts)
		assert.Equal(t, want.LineCount, got.LineCount, "parts=%d", parts)
		assert.Equal(t, want.ErrorCount, got.ErrorCount, "parts=%d", parts)
		assert.Equal(t, want.RequestCount, got.RequestCount, "parts=%d", parts)
		assert.InDelta(t, want.ErrorRate, got.ErrorRate, 1e-9, "parts=%d", parts)
		assert.InDelta(t, want.AvgResponseTime, got.AvgResponseTime, 1e-9, "parts=%d", parts)
	}
}

// TestFoldWeightsByRequestCount verifies the average weights chunks by
// their request counts, not one-chunk-one-vote.
func TestFoldWeightsByRequestCount(t *testing.T) {
	results := map[string]cluster.ChunkMetrics{
		// 3 requests averaging 10ms.
		"a#0000": {ResponseTimes: []int64{10, 10, 10}, RequestCount: 3, LineCount: 3},
		// 1 request at 50ms.
		"a#0001": {ResponseTimes: []int64{50}, RequestCount: 1, LineCount: 1},
	}

	agg := foldResults(results)
	// Weighted: (3*10 + 1*50) / 4 = 20. A naive mean of chunk means would
	// say 30.
	assert.InDelta(t, 20.0, agg.AvgResponseTime, 1e-9)
	assert.Equal(t, int64(4), agg.RequestCount)
}

// TestFoldErrorRateUsesTotalLines verifies the denominator is all source
// lines, not just request lines.
func TestFoldErrorRateUsesTotalLines(t *testing.T) {
	results := map[string]cluster.ChunkMetrics{
		"a#0000": {ErrorCount: 1, LineCount: 4},
		"a#0001": {ErrorCount: 1, LineCount: 6},
	}

	agg := foldResults(results)
	assert.InDelta(t, 0.2, agg.ErrorRate, 1e-9)
}

// TestFoldEmpty verifies folding nothing yields the zero aggregate without
// dividing by zero.
func TestFoldEmpty(t *testing.T) {
	assert.Equal(t, Aggregate{}, foldResults(nil))
	assert.Equal(t, Aggregate{}, foldResults(map[string]cluster.ChunkMetrics{}))
}

// TestFoldNoRequests verifies a log with errors but no timing lines folds
// cleanly with a zero average.
func TestFoldNoRequests(t *testing.T) {
	results := map[string]cluster.ChunkMetrics{
		"a#0000": {ErrorCount: 2, LineCount: 5},
	}

	agg := foldResults(results)
	assert.InDelta(t, 0.4, agg.ErrorRate, 1e-9)
	assert.Zero(t, agg.AvgResponseTime)
	assert.Zero(t, agg.RequestCount)
}

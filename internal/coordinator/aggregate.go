// Package coordinator implements the work-management engine for logsift.
// This file implements the aggregate fold over accepted results.
package coordinator

import "github.com/dreamware/logsift/internal/cluster"

// Aggregate is the global metric: a pure fold over the accepted per-chunk
// results. It is recomputed from the stored results on demand, never
// mutated incrementally, so it is correct by construction whenever every
// task holds exactly one accepted result.
type Aggregate struct {
	// ErrorRate is total error lines over total source lines.
	ErrorRate float64 `json:"error_rate"`

	// AvgResponseTime is the request-count-weighted mean of the per-chunk
	// averages. Weighting keeps the value invariant to how the file was
	// chunked; a naive mean of per-chunk means would not be.
	AvgResponseTime float64 `json:"avg_response_time"`

	RequestCount int64 `json:"request_count"`
	ErrorCount   int64 `json:"error_count"`
	LineCount    int64 `json:"line_count"`

	// ChunksCounted is how many accepted results the fold covers.
	ChunksCounted int `json:"chunks_counted"`
}

// FailedChunk names a byte range that exhausted its retry budget. Consumers
// use the list to judge how complete the aggregate is.
type FailedChunk struct {
	TaskID  string `json:"task_id"`
	Offset  int64  `json:"offset"`
	Length  int64  `json:"length"`
	Retries int    `json:"retries"`
}

// foldResults merges the accepted results into one Aggregate.
func foldResults(results map[string]cluster.ChunkMetrics) Aggregate {
	var agg Aggregate
	var weighted float64
	for _, m := range results {
		agg.ErrorCount += m.ErrorCount
		agg.LineCount += m.LineCount
		agg.RequestCount += m.RequestCount
		agg.ChunksCounted++
		if m.RequestCount > 0 {
			var sum int64
			for _, sample := range m.ResponseTimes {
				sum += sample
			}
			avg := float64(sum) / float64(m.RequestCount)
			weighted += avg * float64(m.RequestCount)
		}
	}
	if agg.LineCount > 0 {
		agg.ErrorRate = float64(agg.ErrorCount) / float64(agg.LineCount)
	}
	if agg.RequestCount > 0 {
		agg.AvgResponseTime = weighted / float64(agg.RequestCount)
	}
	return agg
}

package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WorkerInfo identifies a worker process in the analysis cluster.
type WorkerInfo struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// RegisterRequest is sent by a worker to the coordinator once at startup,
// before the job's file is partitioned.
type RegisterRequest struct {
	Worker WorkerInfo `json:"worker"`
}

// HeartbeatRequest is sent by a worker at a fixed interval to signal
// liveness, independent of whether the worker is processing a chunk.
type HeartbeatRequest struct {
	WorkerID string `json:"worker_id"`
}

// AssignRequest is sent by the coordinator to a worker to hand it one
// line-aligned byte range of the log file.
type AssignRequest struct {
	TaskID string `json:"task_id"`
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Length int64  `json:"length"`
}

// ChunkMetrics is the output of processing one chunk of the log file.
// ResponseTimes preserves sample order within the chunk.
type ChunkMetrics struct {
	ErrorCount    int64   `json:"error_count"`
	ResponseTimes []int64 `json:"response_times"`
	RequestCount  int64   `json:"request_count"`
	LineCount     int64   `json:"line_count"`
}

// ReportRequest is sent by a worker to the coordinator when a chunk attempt
// finishes. A non-empty Error means the chunk could not be processed
// (unreadable file, bad range) and the metrics are meaningless; the
// coordinator routes such reports through its failure path.
type ReportRequest struct {
	TaskID   string       `json:"task_id"`
	WorkerID string       `json:"worker_id"`
	Metrics  ChunkMetrics `json:"metrics"`
	Error    string       `json:"error,omitempty"`
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// PostJSON sends body as JSON to url and, if out is non-nil, decodes the
// response body into it. Any status >= 300 is an error.
func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON fetches url and decodes the JSON response into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

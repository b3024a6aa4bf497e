// Package coordinator implements the work-management engine for logsift.
// This file defines worker health states and the registry records.
package coordinator

import "time"

// WorkerState represents a worker's standing with the coordinator.
type WorkerState string

const (
	// WorkerRegistered means the worker has joined but the job has not
	// started yet.
	WorkerRegistered WorkerState = "registered"
	// WorkerIdle means the worker is healthy and has no task.
	WorkerIdle WorkerState = "idle"
	// WorkerBusy means the worker owns exactly one task.
	WorkerBusy WorkerState = "busy"
	// WorkerUnhealthy means heartbeats have gone quiet past the first
	// threshold. A fresh heartbeat restores the worker.
	WorkerUnhealthy WorkerState = "unhealthy"
	// WorkerFailed means the worker was declared dead and its work
	// reassigned. Terminal: the record is retained for audit and late
	// heartbeats from this worker ID are ignored for the rest of the job.
	WorkerFailed WorkerState = "failed"
)

// workerRecord is the coordinator's bookkeeping for one worker.
// All fields are owned by the Job's mutex.
type workerRecord struct {
	id   string
	addr string

	state    WorkerState
	lastBeat time.Time
	task     string // ID of the currently assigned task, "" if none
}

// alive reports whether the worker still counts toward the job's capacity.
func (w *workerRecord) alive() bool {
	return w.state != WorkerFailed
}

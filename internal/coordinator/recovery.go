// Package coordinator implements the work-management engine for logsift.
// This file implements failure recovery: returning a dead worker's tasks to
// the pool.
package coordinator

import "log"

// revertTasksLocked reverts every task owned by workerID back to pending and
// re-enqueues it, charging one retry per revert. A task that has burned
// through its retry budget becomes permanently failed instead and is
// excluded from further scheduling; it is reported as a failed chunk, never
// silently counted as a zero-metric success.
//
// Runs inside the worker's registered→failed transition, so recovery fires
// exactly once per failure event. The worker's own record is kept for audit.
func (j *Job) revertTasksLocked(workerID string) {
	for _, t := range j.tasks {
		if t.worker != workerID {
			continue
		}
		if t.state != TaskAssigned && t.state != TaskInProgress {
			continue
		}
		t.retries++
		if t.retries > j.cfg.MaxRetries {
			t.state = TaskFailedPermanently
			log.Printf("coordinator: task %s failed permanently after %d attempts", t.id, t.retries)
			continue
		}
		t.state = TaskPending
		t.worker = ""
		j.pending.push(t)
		log.Printf("coordinator: task %s reverted to pending (retry %d/%d)", t.id, t.retries, j.cfg.MaxRetries)
	}
}

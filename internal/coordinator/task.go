// Package coordinator implements the work-management engine for logsift.
// This file defines the task lifecycle and the pending queue.
package coordinator

import (
	"container/heap"
	"fmt"
	"path/filepath"
)

// TaskState represents where a task is in its lifecycle.
type TaskState string

const (
	// TaskPending means the task is waiting for a worker.
	TaskPending TaskState = "pending"
	// TaskAssigned means the task has an owner but dispatch has not been
	// acknowledged yet.
	TaskAssigned TaskState = "assigned"
	// TaskInProgress means the owning worker acknowledged the assignment.
	TaskInProgress TaskState = "in_progress"
	// TaskCompleted means exactly one result has been accepted. Terminal:
	// a completed task never transitions again.
	TaskCompleted TaskState = "completed"
	// TaskFailedPermanently means the retry budget is exhausted. Terminal.
	// The chunk is reported as failed, never folded in as a zero result.
	TaskFailedPermanently TaskState = "failed_permanently"
)

// task tracks one chunk through assignment, failure, and completion.
// All fields are owned by the Job's mutex.
type task struct {
	id     string
	index  int
	path   string
	offset int64
	length int64

	state   TaskState
	worker  string // owning worker while assigned/in_progress, last owner after
	retries int
}

func (t *task) isTerminal() bool {
	return t.state == TaskCompleted || t.state == TaskFailedPermanently
}

// taskID derives a stable identifier from the file and chunk index, so a
// task keeps its identity across reassignment and re-runs of the same file.
func taskID(path string, index int) string {
	return fmt.Sprintf("%s#%04d", filepath.Base(path), index)
}

// pendingQueue orders pending task IDs by chunk index so scheduling pops
// tasks in file order and re-runs are deterministic.
type pendingQueue []*task

func (q pendingQueue) Len() int           { return len(q) }
func (q pendingQueue) Less(i, j int) bool { return q[i].index < q[j].index }
func (q pendingQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) {
	*q = append(*q, x.(*task))
}

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// push and pop wrap container/heap so callers cannot bypass the ordering.

func (q *pendingQueue) push(t *task) { heap.Push(q, t) }

func (q *pendingQueue) pop() *task { return heap.Pop(q).(*task) }

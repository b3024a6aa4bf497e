// Package coordinator implements the work-management engine for logsift.
// This file implements scheduling: matching pending tasks to idle workers
// and dispatching assignments.
package coordinator

import (
	"context"
	"fmt"
	"log"

	"github.com/dreamware/logsift/internal/cluster"
)

// dispatchOp is an assignment decided under the lock, dispatched outside it.
type dispatchOp struct {
	workerID string
	addr     string
	req      cluster.AssignRequest
}

// Schedule runs matching passes until no pending task can be paired with an
// idle worker. Tasks are popped in chunk-index order and workers picked by
// lowest ID, so repeated runs of the same scenario assign identically.
//
// Dispatch happens with the lock released. A dispatch error is treated as
// an immediate worker failure: the worker is failed, its task reverts to
// pending, and the next pass picks it up — the task is never left stuck in
// assigned. Completions and recoveries re-enter here, so the loop also
// drains work freed up while a pass was dispatching.
func (j *Job) Schedule() {
	for {
		j.mu.Lock()
		ops := j.scheduleLocked()
		j.mu.Unlock()
		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			ctx, cancel := context.WithTimeout(j.baseCtx, j.cfg.DispatchTimeout)
			err := j.dispatch(ctx, op.addr, op.req)
			cancel()
			if err != nil {
				j.mu.Lock()
				j.failWorkerLocked(op.workerID, fmt.Sprintf("dispatch %s: %v", op.req.TaskID, err))
				j.mu.Unlock()
				continue
			}
			j.confirmDispatch(op.req.TaskID, op.workerID)
			log.Printf("coordinator: assigned %s [%d+%d] to %s",
				op.req.TaskID, op.req.Offset, op.req.Length, op.workerID)
		}
	}
}

func (j *Job) scheduleLocked() []dispatchOp {
	var ops []dispatchOp
	for j.pending.Len() > 0 {
		w := j.idleWorkerLocked()
		if w == nil {
			break
		}
		t := j.pending.pop()
		if t.state != TaskPending {
			continue
		}
		t.state = TaskAssigned
		t.worker = w.id
		w.state = WorkerBusy
		w.task = t.id
		ops = append(ops, dispatchOp{
			workerID: w.id,
			addr:     w.addr,
			req: cluster.AssignRequest{
				TaskID: t.id,
				Path:   t.path,
				Offset: t.offset,
				Length: t.length,
			},
		})
	}
	return ops
}

// idleWorkerLocked picks the idle worker with the lowest ID. No affinity:
// any idle worker can take any chunk.
func (j *Job) idleWorkerLocked() *workerRecord {
	var pick *workerRecord
	for _, w := range j.workers {
		if w.state != WorkerIdle {
			continue
		}
		if pick == nil || w.id < pick.id {
			pick = w
		}
	}
	return pick
}

// confirmDispatch moves a task to in-progress once the worker acked the
// assignment, unless a concurrent failure already took the task back.
func (j *Job) confirmDispatch(taskID, workerID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t := j.tasks[taskID]
	if t != nil && t.state == TaskAssigned && t.worker == workerID {
		t.state = TaskInProgress
	}
}

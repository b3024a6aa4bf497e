// Package coordinator implements the work-management engine for logsift.
// This file implements the Job, the single-writer authority over all worker
// and task state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/dreamware/logsift/internal/cluster"
	"github.com/dreamware/logsift/internal/config"
)

// Errors returned by Job operations. Handlers map these onto HTTP statuses.
var (
	// ErrDuplicateWorker is returned when a worker ID registers twice.
	// Duplicate registration is rejected rather than silently overwriting
	// the existing worker's state.
	ErrDuplicateWorker = errors.New("worker id already registered")

	// ErrRegistrationClosed is returned when a worker registers after the
	// file has been partitioned. The pool is fixed for the job's lifetime.
	ErrRegistrationClosed = errors.New("registration closed: job already started")

	// ErrUnknownWorker is returned for a heartbeat from an unregistered ID.
	ErrUnknownWorker = errors.New("unknown worker")

	// ErrWorkerRetired is returned for a heartbeat from a worker already
	// declared failed. That worker ID is retired for the rest of the job.
	ErrWorkerRetired = errors.New("worker id retired")

	// ErrUnknownTask is returned for a result naming a task that does not
	// exist in this job.
	ErrUnknownTask = errors.New("unknown task")

	// ErrJobStarted is returned by Start when called twice.
	ErrJobStarted = errors.New("job already started")

	// ErrNoWorkers is returned by Start when no worker ever registered.
	ErrNoWorkers = errors.New("no workers registered")

	// ErrNoLiveWorkers is the job's terminal error when every worker has
	// failed while unfinished work remains.
	ErrNoLiveWorkers = errors.New("all workers failed with work remaining")
)

// DispatchFunc delivers an assignment to a worker at addr. The engine treats
// a dispatch error as evidence of worker failure, not as a retryable call.
// Injected so tests can run the full engine without a network.
type DispatchFunc func(ctx context.Context, addr string, req cluster.AssignRequest) error

// Job is the coordinator's engine for one analysis run: it owns the worker
// registry, the task table, and the accepted results, and it is the only
// writer to any of them.
//
// # Concurrency Model
//
// Result reports, heartbeats, and the periodic health sweep all arrive
// concurrently with no ordering guarantee. Every mutation goes through one
// mutex (single-writer discipline), so any interleaving resolves through
// the same transition rules:
//
//   - a result for a completed task is a duplicate and is discarded
//   - a result from a worker that no longer owns the task is stale and is
//     discarded
//   - a worker transitions to failed at most once, and recovery of its
//     tasks runs exactly once, inside that transition
//
// Network calls (dispatching assignments) never run under the lock: the
// scheduler marks state first, releases the lock, then dispatches, and
// resolves the outcome through the same guarded transitions.
//
// Reads for /status take the lock only long enough to copy a snapshot.
type Job struct {
	id       string
	path     string
	cfg      config.Config
	dispatch DispatchFunc

	// now is the clock; replaced in tests to drive failure detection
	// without real waiting.
	now func() time.Time

	mu      sync.Mutex
	workers map[string]*workerRecord
	tasks   map[string]*task
	pending pendingQueue
	results map[string]cluster.ChunkMetrics

	started  bool
	finished bool
	err      error
	done     chan struct{}

	// baseCtx parents dispatch calls triggered by engine events.
	baseCtx context.Context
}

// NewJob creates the engine for analyzing the file at path. Nothing happens
// until workers register and Start is called.
func NewJob(path string, cfg config.Config, dispatch DispatchFunc) *Job {
	return &Job{
		id:       uuid.NewString(),
		path:     path,
		cfg:      cfg,
		dispatch: dispatch,
		now:      time.Now,
		workers:  make(map[string]*workerRecord),
		tasks:    make(map[string]*task),
		results:  make(map[string]cluster.ChunkMetrics),
		done:     make(chan struct{}),
		baseCtx:  context.Background(),
	}
}

// ID returns the run identifier minted for this job.
func (j *Job) ID() string { return j.id }

// RegisterWorker adds a worker to the pool. Registration is only open
// before Start; a duplicate ID is rejected with ErrDuplicateWorker.
func (j *Job) RegisterWorker(id, addr string) error {
	if id == "" || addr == "" {
		return errors.New("worker id and addr are required")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.started {
		return ErrRegistrationClosed
	}
	if _, ok := j.workers[id]; ok {
		return ErrDuplicateWorker
	}
	j.workers[id] = &workerRecord{
		id:       id,
		addr:     addr,
		state:    WorkerRegistered,
		lastBeat: j.now(),
	}
	log.Printf("coordinator: worker %s registered at %s (%d total)", id, addr, len(j.workers))
	return nil
}

// WorkerCount returns the number of registered workers, failed included.
func (j *Job) WorkerCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.workers)
}

// Start closes registration, partitions the file into one chunk per
// registered worker, and begins scheduling. A partition error is fatal: the
// job terminates before any task is created.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return ErrJobStarted
	}
	if len(j.workers) == 0 {
		j.mu.Unlock()
		return ErrNoWorkers
	}
	j.started = true
	parts := len(j.workers)
	j.mu.Unlock()

	chunks, err := Partition(j.path, parts)
	if err != nil {
		j.mu.Lock()
		j.finishLocked(err)
		j.mu.Unlock()
		return err
	}

	j.mu.Lock()
	if ctx != nil {
		j.baseCtx = ctx
	}
	for _, c := range chunks {
		t := &task{
			id:     taskID(j.path, c.Index),
			index:  c.Index,
			path:   j.path,
			offset: c.Offset,
			length: c.Length,
			state:  TaskPending,
		}
		j.tasks[t.id] = t
		j.pending.push(t)
	}
	for _, w := range j.workers {
		w.state = WorkerIdle
	}
	log.Printf("coordinator: job %s started: %d tasks across %d workers", j.id, len(j.tasks), parts)
	j.checkDoneLocked()
	j.mu.Unlock()

	j.Schedule()
	return nil
}

// Heartbeat records liveness for a worker. A beat from an unhealthy worker
// restores it; a beat from a failed worker is rejected with ErrWorkerRetired
// (the failure already triggered recovery and must not be undone).
func (j *Job) Heartbeat(id string) error {
	j.mu.Lock()
	w, ok := j.workers[id]
	if !ok {
		j.mu.Unlock()
		return ErrUnknownWorker
	}
	if w.state == WorkerFailed {
		j.mu.Unlock()
		return ErrWorkerRetired
	}
	w.lastBeat = j.now()
	restoredIdle := false
	if w.state == WorkerUnhealthy {
		if w.task != "" {
			w.state = WorkerBusy
		} else {
			w.state = WorkerIdle
			restoredIdle = true
		}
		log.Printf("coordinator: worker %s recovered (now %s)", id, w.state)
	}
	j.mu.Unlock()

	if restoredIdle {
		j.Schedule()
	}
	return nil
}

// HandleResult applies the idempotent acceptance rules to one report.
//
// First accepted result wins: a report for a completed task is a duplicate
// and is dropped, and a report from a worker that no longer owns the task
// is stale and is dropped, so at-least-once delivery still yields
// exactly-once effect on the aggregate. A report carrying a processing
// error fails the reporting worker, which reverts its task to pending.
func (j *Job) HandleResult(rep cluster.ReportRequest) error {
	j.mu.Lock()
	t, ok := j.tasks[rep.TaskID]
	if !ok {
		j.mu.Unlock()
		return ErrUnknownTask
	}
	if t.state == TaskCompleted {
		log.Printf("coordinator: duplicate result for %s from %s discarded", rep.TaskID, rep.WorkerID)
		j.mu.Unlock()
		return nil
	}
	if (t.state != TaskAssigned && t.state != TaskInProgress) || t.worker != rep.WorkerID {
		log.Printf("coordinator: stale result for %s from %s discarded (owner %q, state %s)",
			rep.TaskID, rep.WorkerID, t.worker, t.state)
		j.mu.Unlock()
		return nil
	}
	if rep.Error != "" {
		j.failWorkerLocked(rep.WorkerID, fmt.Sprintf("processing %s: %s", rep.TaskID, rep.Error))
		j.mu.Unlock()
		j.Schedule()
		return nil
	}

	j.results[t.id] = copyMetrics(rep.Metrics)
	t.state = TaskCompleted
	if w := j.workers[rep.WorkerID]; w != nil && w.task == t.id {
		w.task = ""
		if w.state == WorkerBusy {
			w.state = WorkerIdle
		}
	}
	log.Printf("coordinator: result for %s accepted from %s (%d/%d tasks complete)",
		t.id, rep.WorkerID, j.completedLocked(), len(j.tasks))
	j.checkDoneLocked()
	j.mu.Unlock()

	j.Schedule()
	return nil
}

// FailWorker declares a worker dead and reverts its unfinished work.
// Idempotent per failure: a worker already failed is left alone.
func (j *Job) FailWorker(id, reason string) {
	j.mu.Lock()
	j.failWorkerLocked(id, reason)
	j.mu.Unlock()
	j.Schedule()
}

func (j *Job) failWorkerLocked(id, reason string) {
	w := j.workers[id]
	if w == nil || w.state == WorkerFailed {
		return
	}
	log.Printf("coordinator: worker %s failed: %s", id, reason)
	w.state = WorkerFailed
	w.task = ""
	j.revertTasksLocked(id)
	j.checkDoneLocked()
}

// Done reports whether the job has reached a terminal state.
func (j *Job) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job terminates or ctx is canceled, returning the
// job's terminal error (nil on normal completion).
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the job's terminal error, nil while running or on success.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) completedLocked() int {
	n := 0
	for _, t := range j.tasks {
		if t.state == TaskCompleted {
			n++
		}
	}
	return n
}

// checkDoneLocked terminates the job when every task is terminal, or fails
// it when no live worker remains to finish the rest.
func (j *Job) checkDoneLocked() {
	if !j.started || j.finished {
		return
	}
	allTerminal := true
	for _, t := range j.tasks {
		if !t.isTerminal() {
			allTerminal = false
			break
		}
	}
	if allTerminal {
		j.finishLocked(nil)
		return
	}
	for _, w := range j.workers {
		if w.alive() {
			return
		}
	}
	j.finishLocked(ErrNoLiveWorkers)
}

func (j *Job) finishLocked(err error) {
	if j.finished {
		return
	}
	j.finished = true
	j.err = err
	close(j.done)
	if err != nil {
		log.Printf("coordinator: job %s failed: %v", j.id, err)
	} else {
		log.Printf("coordinator: job %s complete", j.id)
	}
}

// TaskStatus is a point-in-time copy of one task's lifecycle state.
type TaskStatus struct {
	ID      string    `json:"id"`
	Index   int       `json:"index"`
	Offset  int64     `json:"offset"`
	Length  int64     `json:"length"`
	State   TaskState `json:"state"`
	Worker  string    `json:"worker,omitempty"`
	Retries int       `json:"retries"`
}

// WorkerStatus is a point-in-time copy of one worker's registry record.
// Failed workers stay in the snapshot for audit.
type WorkerStatus struct {
	ID            string      `json:"id"`
	Addr          string      `json:"addr"`
	State         WorkerState `json:"state"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	Task          string      `json:"task,omitempty"`
}

// Snapshot is the operator-facing view of the job: per-task state, worker
// health, the running aggregate, and the chunks that failed permanently.
type Snapshot struct {
	JobID        string        `json:"job_id"`
	Path         string        `json:"path"`
	Started      bool          `json:"started"`
	Done         bool          `json:"done"`
	Err          string        `json:"error,omitempty"`
	Tasks        []TaskStatus  `json:"tasks"`
	Workers      []WorkerStatus `json:"workers"`
	Aggregate    Aggregate     `json:"aggregate"`
	FailedChunks []FailedChunk `json:"failed_chunks,omitempty"`
}

// Snapshot copies the job's current state. The copy is detached: mutating
// it cannot affect the engine.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := Snapshot{
		JobID:     j.id,
		Path:      j.path,
		Started:   j.started,
		Done:      j.finished,
		Aggregate: foldResults(j.results),
	}
	if j.err != nil {
		snap.Err = j.err.Error()
	}
	for _, t := range j.tasks {
		snap.Tasks = append(snap.Tasks, TaskStatus{
			ID:      t.id,
			Index:   t.index,
			Offset:  t.offset,
			Length:  t.length,
			State:   t.state,
			Worker:  t.worker,
			Retries: t.retries,
		})
		if t.state == TaskFailedPermanently {
			snap.FailedChunks = append(snap.FailedChunks, FailedChunk{
				TaskID:  t.id,
				Offset:  t.offset,
				Length:  t.length,
				Retries: t.retries,
			})
		}
	}
	for _, w := range j.workers {
		snap.Workers = append(snap.Workers, WorkerStatus{
			ID:            w.id,
			Addr:          w.addr,
			State:         w.state,
			LastHeartbeat: w.lastBeat,
			Task:          w.task,
		})
	}
	slices.SortFunc(snap.Tasks, func(a, b TaskStatus) int { return a.Index - b.Index })
	slices.SortFunc(snap.FailedChunks, func(a, b FailedChunk) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		default:
			return 0
		}
	})
	slices.SortFunc(snap.Workers, func(a, b WorkerStatus) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return snap
}

func copyMetrics(m cluster.ChunkMetrics) cluster.ChunkMetrics {
	out := m
	out.ResponseTimes = make([]int64, len(m.ResponseTimes))
	copy(out.ResponseTimes, m.ResponseTimes)
	return out
}

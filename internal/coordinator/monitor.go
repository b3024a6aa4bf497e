// Package coordinator implements the work-management engine for logsift.
// This file implements heartbeat monitoring: the periodic sweep that ages
// silent workers from healthy to unhealthy to failed.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Monitor runs the health sweep at the heartbeat cadence. Workers report
// liveness by POSTing heartbeats (recorded via Job.Heartbeat); the sweep
// only reads the recorded timestamps, so a worker that is busy on a long
// chunk stays healthy as long as its heartbeat loop keeps running.
//
// Thread-safe: the sweep mutates state only through the Job's guarded
// transitions.
type Monitor struct {
	job      *Job
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor sweeping at the job's heartbeat interval.
func NewMonitor(job *Job) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		job:      job,
		interval: job.cfg.HeartbeatInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the sweep loop in the current goroutine until ctx (or Stop)
// cancels it. Call as `go monitor.Start(ctx)`.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("coordinator: health sweep started with interval %v", m.interval)

	for {
		select {
		case <-ticker.C:
			if m.job.sweep() {
				m.job.Schedule()
			}
		case <-ctx.Done():
			log.Println("coordinator: health sweep stopped")
			return
		case <-m.ctx.Done():
			log.Println("coordinator: health sweep stopped")
			return
		}
	}
}

// Stop cancels the sweep loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// sweep applies the failure-detection ladder to every worker and reports
// whether any worker was failed (and thus whether tasks were reverted and
// the caller should schedule).
//
// A worker silent past UnhealthyAfter is marked unhealthy; silent past
// FailedAfter it is failed. Failing goes through failWorkerLocked, whose
// state guard makes the recovery callback fire at most once per failure.
func (j *Job) sweep() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	recovered := false
	for _, w := range j.workers {
		silence := now.Sub(w.lastBeat)
		switch w.state {
		case WorkerRegistered, WorkerIdle, WorkerBusy:
			if silence >= j.cfg.FailedAfter {
				j.failWorkerLocked(w.id, fmt.Sprintf("no heartbeat for %v", silence))
				recovered = true
			} else if silence >= j.cfg.UnhealthyAfter {
				w.state = WorkerUnhealthy
				log.Printf("coordinator: worker %s unhealthy (no heartbeat for %v)", w.id, silence)
			}
		case WorkerUnhealthy:
			if silence >= j.cfg.FailedAfter {
				j.failWorkerLocked(w.id, fmt.Sprintf("no heartbeat for %v", silence))
				recovered = true
			}
		}
	}
	return recovered
}

// Package worker implements the worker-side collaborators.
// This file implements the heartbeat reporter.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dreamware/logsift/internal/cluster"
)

// Reporter sends a heartbeat to the coordinator at a fixed interval. The
// loop is independent of chunk processing: a worker keeps beating while it
// is busy, so a long chunk does not read as a death.
//
// A send failure is logged and the loop carries on; from the worker's side
// a missed beat is not fatal, it is the coordinator's sweep that decides
// when silence becomes failure.
type Reporter struct {
	workerID string
	coord    string // coordinator base URL
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewReporter creates a heartbeat reporter for workerID against the
// coordinator at base URL coord.
func NewReporter(workerID, coord string, interval time.Duration) *Reporter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reporter{
		workerID: workerID,
		coord:    coord,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the heartbeat loop in the current goroutine until ctx (or
// Stop) cancels it. An initial beat is sent immediately so the coordinator
// sees the worker as fresh the moment the job starts.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	defer r.wg.Done()

	if ctx == nil {
		ctx = r.ctx
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.beat(ctx)

	for {
		select {
		case <-ticker.C:
			r.beat(ctx)
		case <-ctx.Done():
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// Stop cancels the heartbeat loop and waits for it to exit.
func (r *Reporter) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Reporter) beat(ctx context.Context) {
	body := cluster.HeartbeatRequest{WorkerID: r.workerID}
	if err := cluster.PostJSON(ctx, r.coord+"/heartbeat", body, nil); err != nil {
		log.Printf("worker[%s]: heartbeat: %v", r.workerID, err)
	}
}

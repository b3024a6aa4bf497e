// Package coordinator implements logsift's distributed work-management
// engine: partitioning one large log file into line-aligned chunks,
// assigning chunks to registered workers, detecting worker failures through
// heartbeats, reassigning orphaned work, and folding per-chunk results into
// a single global metric exactly once.
//
// # Overview
//
// The engine maintains two global invariants for the lifetime of a job:
//
//  1. The chunk set partitions the file exactly — no gap, no overlap — and
//     never changes after job start; only chunk-to-worker assignment moves.
//  2. Each chunk contributes at most one result to the aggregate, no matter
//     how many times its task is reassigned or its result re-delivered.
//
// # Architecture
//
//	┌─────────────────────────────────────────────┐
//	│                    Job                      │
//	│        (single mutex over all state)        │
//	├─────────────────────────────────────────────┤
//	│                                             │
//	│  Partitioner    chunks ──► task table       │
//	│                                             │
//	│  Scheduler      pending heap ──► idle       │
//	│                 workers, dispatch outside   │
//	│                 the lock                    │
//	│                                             │
//	│  Monitor        heartbeat sweep: silent ──► │
//	│                 unhealthy ──► failed        │
//	│                                             │
//	│  Recovery       failed worker's tasks ──►   │
//	│                 pending (retry budget)      │
//	│                                             │
//	│  Aggregator     first accepted result per   │
//	│                 task, owner-checked, folded │
//	│                 into the global metric      │
//	│                                             │
//	└─────────────────────────────────────────────┘
//
// # Lifecycle
//
// Workers register before the job starts (the pool is fixed; duplicates are
// rejected). Start partitions the file into one chunk per worker, snapping
// interior boundaries forward to line terminators, and begins scheduling.
// The monitor sweeps at the heartbeat cadence; a worker that stops beating
// is aged to unhealthy, then failed, and its tasks are reverted to pending
// with a retry charge. A task past its retry budget fails permanently and
// is named in the final report. The job terminates when every task is
// completed or permanently failed, or with ErrNoLiveWorkers when nobody is
// left to run the remainder.
//
// # Concurrency
//
// Result reports, heartbeats, and the health sweep race freely; all of them
// funnel into the Job's mutex and resolve through guarded transitions. See
// the Job type for the acceptance rules that make results idempotent under
// duplicate and late delivery.
package coordinator

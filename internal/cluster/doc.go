// Package cluster defines the wire surface shared by the logsift coordinator
// and its workers, plus small JSON-over-HTTP helpers both sides use.
//
// # Overview
//
// Logsift distributes the analysis of one large log file across a pool of
// worker processes. The coordinator owns all bookkeeping; workers are thin
// executors. This package holds only what crosses the wire between them:
//
//	worker → coordinator   POST /register   RegisterRequest
//	worker → coordinator   POST /heartbeat  HeartbeatRequest
//	coordinator → worker   POST /assign     AssignRequest
//	worker → coordinator   POST /report     ReportRequest
//
// All messages are JSON over plain HTTP. The transport makes no delivery
// guarantees beyond request/response; duplicate and late reports are
// expected and resolved by the coordinator's idempotent acceptance rules,
// not here.
//
// # Design Principles
//
//   - Messages carry identity, not state: the coordinator never trusts a
//     worker's view of task lifecycle, only its worker_id and task_id.
//   - Error reports are in-band: a ReportRequest with a non-empty Error is
//     the worker's way of returning a chunk it could not read.
//   - Helpers are context-aware so callers control timeouts and shutdown.
package cluster

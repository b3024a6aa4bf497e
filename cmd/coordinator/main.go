// Package main implements the logsift coordinator, the single authority for
// one log-analysis job.
//
// The coordinator waits for the expected number of workers to register,
// partitions the log file into line-aligned chunks, assigns chunks to idle
// workers, sweeps heartbeats to detect dead workers, reassigns their work,
// and folds accepted results into the global metric. It exits 0 once every
// task is completed or permanently failed (failed chunks are printed, never
// hidden), and non-zero when it cannot bind its listen address or the job
// aborts.
//
// Usage:
//
//	coordinator -port 8000 -file access.log -workers 3 [-config logsift.yml]
//
// HTTP surface:
//
//	POST /register   worker joins (before the job starts)
//	POST /heartbeat  worker liveness
//	POST /report     per-chunk result (duplicates and stale reports acked
//	                 and discarded)
//	GET  /status     per-task state, worker health, running aggregate
//	GET  /health     liveness probe
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/logsift/internal/cluster"
	"github.com/dreamware/logsift/internal/config"
	"github.com/dreamware/logsift/internal/coordinator"
)

// logFatal is a variable so tests can intercept fatal exits.
var logFatal = log.Fatalf

type server struct {
	job *coordinator.Job
}

func main() {
	port := flag.Int("port", 8000, "listen port")
	file := flag.String("file", "", "log file to analyze (required)")
	workers := flag.Int("workers", 1, "workers to wait for before partitioning")
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *file == "" {
		logFatal("coordinator: -file is required")
	}
	if *workers < 1 {
		logFatal("coordinator: -workers must be at least 1")
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			logFatal("coordinator: %v", err)
		}
	}

	job := coordinator.NewJob(*file, cfg, dispatchAssign)
	srv := &server{job: job}

	mux := http.NewServeMux()
	mux.HandleFunc("/register", srv.handleRegister)
	mux.HandleFunc("/heartbeat", srv.handleHeartbeat)
	mux.HandleFunc("/report", srv.handleReport)
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", *port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Bind synchronously: a taken port must be a non-zero exit, not a
	// background fatal after workers already started registering.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logFatal("coordinator: listen: %v", err)
	}
	go func() {
		log.Printf("coordinator listening on %s", addr)
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logFatal("coordinator: serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if !waitForWorkers(job, *workers, stop) {
		shutdown(httpSrv)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := job.Start(ctx); err != nil {
		shutdown(httpSrv)
		logFatal("coordinator: %v", err)
	}

	monitor := coordinator.NewMonitor(job)
	go monitor.Start(ctx)

	exitCode := 0
	select {
	case <-stop:
		log.Println("coordinator: interrupted")
		exitCode = 1
	case <-jobDone(job):
		printReport(job.Snapshot())
		if job.Err() != nil {
			exitCode = 1
		}
	}

	monitor.Stop()
	shutdown(httpSrv)
	os.Exit(exitCode)
}

// waitForWorkers blocks until want workers registered or a signal arrives.
// Returns false on signal.
func waitForWorkers(job *coordinator.Job, want int, stop <-chan os.Signal) bool {
	log.Printf("coordinator: waiting for %d workers to register", want)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if job.WorkerCount() >= want {
				return true
			}
		case <-stop:
			log.Println("coordinator: interrupted while waiting for workers")
			return false
		}
	}
}

func jobDone(job *coordinator.Job) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		_ = job.Wait(context.Background())
		close(ch)
	}()
	return ch
}

// printReport writes the final aggregate plus the explicit list of
// permanently failed byte ranges.
func printReport(snap coordinator.Snapshot) {
	agg := snap.Aggregate
	log.Printf("report: job %s: %d lines, error rate %.4f, %d requests, avg response %.2fms",
		snap.JobID, agg.LineCount, agg.ErrorRate, agg.RequestCount, agg.AvgResponseTime)
	if len(snap.FailedChunks) == 0 {
		log.Printf("report: all %d chunks processed", agg.ChunksCounted)
		return
	}
	log.Printf("report: %d chunks FAILED and are excluded from the aggregate:", len(snap.FailedChunks))
	for _, fc := range snap.FailedChunks {
		log.Printf("report:   %s bytes %d+%d after %d attempts", fc.TaskID, fc.Offset, fc.Length, fc.Retries)
	}
}

func shutdown(s *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Shutdown(ctx)
	log.Println("coordinator stopped")
}

// dispatchAssign delivers an assignment to a worker over HTTP. Errors are
// interpreted by the engine as worker failure.
func dispatchAssign(ctx context.Context, addr string, req cluster.AssignRequest) error {
	return cluster.PostJSON(ctx, addr+"/assign", req, nil)
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req cluster.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Worker.ID == "" || req.Worker.Addr == "" {
		http.Error(w, "missing id/addr", http.StatusBadRequest)
		return
	}
	switch err := s.job.RegisterWorker(req.Worker.ID, req.Worker.Addr); {
	case errors.Is(err, coordinator.ErrDuplicateWorker):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, coordinator.ErrRegistrationClosed):
		http.Error(w, err.Error(), http.StatusForbidden)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req cluster.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.WorkerID == "" {
		http.Error(w, "missing worker_id", http.StatusBadRequest)
		return
	}
	switch err := s.job.Heartbeat(req.WorkerID); {
	case errors.Is(err, coordinator.ErrUnknownWorker):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, coordinator.ErrWorkerRetired):
		http.Error(w, err.Error(), http.StatusGone)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req cluster.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.TaskID == "" || req.WorkerID == "" {
		http.Error(w, "missing task_id/worker_id", http.StatusBadRequest)
		return
	}
	// Duplicate and stale reports are still acked: the worker did its part,
	// the engine just discards the payload.
	if err := s.job.HandleResult(req); err != nil {
		if errors.Is(err, coordinator.ErrUnknownTask) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.job.Snapshot())
}

// Package main implements the logsift worker, the executor side of the
// analysis cluster.
//
// A worker registers with the coordinator once at startup, heartbeats at a
// fixed interval regardless of what it is doing, and serves assignments:
// each POST /assign names one line-aligned byte range of the log file,
// which the worker scans locally and reports back with POST /report. A
// chunk it cannot read is reported with an in-band error instead of
// metrics.
//
// Usage:
//
//	worker -port 8101 -id worker-1 -coordinator http://localhost:8000
//
// The -id flag defaults to a generated identifier; IDs must be unique, the
// coordinator rejects duplicates.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/logsift/internal/cluster"
	"github.com/dreamware/logsift/internal/config"
	"github.com/dreamware/logsift/internal/worker"
)

// logFatal is a variable so tests can intercept fatal exits.
var logFatal = log.Fatalf

type workerServer struct {
	id    string
	coord string
}

func main() {
	port := flag.Int("port", 8101, "listen port")
	id := flag.String("id", "", "worker identifier (default: generated)")
	coord := flag.String("coordinator", "", "coordinator base URL (required)")
	public := flag.String("addr", "", "address advertised to the coordinator (default: http://127.0.0.1:<port>)")
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *coord == "" {
		logFatal("worker: -coordinator is required")
	}
	workerID := *id
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}
	addr := *public
	if addr == "" {
		addr = fmt.Sprintf("http://127.0.0.1:%d", *port)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			logFatal("worker: %v", err)
		}
	}

	ws := &workerServer{id: workerID, coord: *coord}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/assign", ws.handleAssign)

	s := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("worker[%s] listening on %s (public %s)", workerID, s.Addr, addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("worker: listen: %v", err)
		}
	}()

	register(context.Background(), *coord, workerID, addr)

	// Heartbeats start only after registration succeeds; the coordinator
	// rejects beats from IDs it has never seen.
	reporter := worker.NewReporter(workerID, *coord, cfg.HeartbeatInterval)
	go reporter.Start(nil)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	reporter.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Shutdown(ctx)
	log.Printf("worker[%s] stopped", workerID)
}

// register joins the coordinator's pool, retrying to ride out coordinator
// startup delays. Persistent failure is fatal: an unregistered worker can
// never be assigned work.
func register(ctx context.Context, coord, id, addr string) {
	body := cluster.RegisterRequest{Worker: cluster.WorkerInfo{ID: id, Addr: addr}}
	var lastErr error
	for i := 0; i < 10; i++ {
		lastErr = cluster.PostJSON(ctx, coord+"/register", body, nil)
		if lastErr == nil {
			log.Printf("worker[%s] registered with coordinator @ %s", id, coord)
			return
		}
		log.Printf("worker[%s] register retry %d: %v", id, i+1, lastErr)
		time.Sleep(400 * time.Millisecond)
	}
	logFatal("worker[%s] failed to register with coordinator: %v", id, lastErr)
}

// handleAssign acks the assignment immediately and processes the chunk in a
// goroutine; the result travels back through POST /report, not through this
// response.
func (ws *workerServer) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req cluster.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.TaskID == "" || req.Path == "" {
		http.Error(w, "missing task_id/path", http.StatusBadRequest)
		return
	}
	log.Printf("worker[%s] assigned %s [%d+%d]", ws.id, req.TaskID, req.Offset, req.Length)
	go ws.run(req)
	w.WriteHeader(http.StatusNoContent)
}

// run processes one chunk and reports the outcome. A processing error is
// reported in-band so the coordinator can revert the task. The report
// itself is retried a few times; the coordinator tolerates duplicates, so
// retrying is safe.
func (ws *workerServer) run(req cluster.AssignRequest) {
	rep := cluster.ReportRequest{TaskID: req.TaskID, WorkerID: ws.id}
	metrics, err := worker.ProcessChunk(req.Path, req.Offset, req.Length)
	if err != nil {
		log.Printf("worker[%s] processing %s: %v", ws.id, req.TaskID, err)
		rep.Error = err.Error()
	} else {
		rep.Metrics = metrics
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lastErr = cluster.PostJSON(ctx, ws.coord+"/report", rep, nil)
		cancel()
		if lastErr == nil {
			return
		}
		time.Sleep(400 * time.Millisecond)
	}
	log.Printf("worker[%s] failed to report %s: %v", ws.id, req.TaskID, lastErr)
}

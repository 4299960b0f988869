// Copyright 2025 Strata Contributors

package prooftask

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strata-rollup/strata-asm/pkg/proofgraph"
)

// Prover executes one proof task against a specific backend host. A
// production deployment registers one Prover per proofgraph.Host naming an
// SP1 cluster, a local Risc0 prover, or the native Groth16 backend; tests
// register a fake that returns a canned receipt.
type Prover interface {
	Prove(ctx context.Context, key proofgraph.ProofKey, deps map[proofgraph.ProofKey]proofgraph.ProofReceipt) (proofgraph.ProofReceipt, error)
}

// Config bounds the manager's worker pool and sweep cadence.
type Config struct {
	WorkersPerHost map[proofgraph.Host]int
	LoopInterval   time.Duration
}

// DefaultConfig returns a one-worker-per-host pool swept every two seconds.
func DefaultConfig() Config {
	return Config{WorkersPerHost: map[proofgraph.Host]int{}, LoopInterval: 2 * time.Second}
}

func (c Config) workersFor(h proofgraph.Host) int {
	if n, ok := c.WorkersPerHost[h]; ok && n > 0 {
		return n
	}
	return 1
}

// Manager is the single scheduling loop described by the proof task graph:
// a TaskTracker of in-flight nodes, a content-addressed ProofDatabase for
// finished receipts, and one Prover per backend host. Manager.Run promotes
// Pending tasks whose dependencies are all Completed onto a bounded worker
// pool, one goroutine per dispatched task, capped at WorkersPerHost
// in-flight workers per host.
type Manager struct {
	cfg      Config
	tracker  *TaskTracker
	db       ProofDatabase
	provers  map[proofgraph.Host]Prover
	metrics  *Metrics
	logger   *log.Logger

	inflightMu sync.Mutex
	inflight   map[proofgraph.ProofKey]bool
}

// NewManager constructs a Manager. provers must contain an entry for every
// Host a task will be submitted against; a task whose host has no
// registered prover is logged on every sweep and stays Pending.
func NewManager(cfg Config, db ProofDatabase, provers map[proofgraph.Host]Prover, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[prooftask] ", log.LstdFlags)
	}
	return &Manager{
		cfg:      cfg,
		tracker:  NewTaskTracker(),
		db:       db,
		provers:  provers,
		metrics:  newMetrics(),
		logger:   logger,
		inflight: make(map[proofgraph.ProofKey]bool),
	}
}

// Submit recursively creates every missing dependency task for ctx bottom
// up, via proofgraph.Expand, and returns the root ProofKey. A second
// Submit of the same (context, host) observes the existing task rather
// than creating a duplicate - PutIfAbsent on the tracker leaves an
// existing key untouched, and PutDeps is only called for tasks this call
// newly created.
func (m *Manager) Submit(ctx proofgraph.ProofContext, host proofgraph.Host, checkpointRanges map[uint64]proofgraph.CheckpointRange) (proofgraph.ProofKey, error) {
	now := time.Now()
	order := proofgraph.Expand(ctx, checkpointRanges)

	for _, node := range order {
		key := proofgraph.ProofKey{Context: node, Host: host}

		var deps []proofgraph.ProofContext
		if node.Kind == proofgraph.KindCheckpoint {
			deps = proofgraph.CheckpointDeps(checkpointRanges[node.Epoch])
		} else {
			deps = node.Deps()
		}
		depKeys := make([]proofgraph.ProofKey, 0, len(deps))
		for _, d := range deps {
			depKeys = append(depKeys, proofgraph.ProofKey{Context: d, Host: host})
		}

		if created := m.tracker.PutIfAbsent(key, depKeys, now); created {
			if err := m.db.PutDeps(node, deps); err != nil {
				return proofgraph.ProofKey{}, fmt.Errorf("prooftask: submit %s: %w", key, err)
			}
			m.metrics.tasksCreated.Inc()
		}
	}

	return proofgraph.ProofKey{Context: ctx, Host: host}, nil
}

// PollStatus returns key's current status, or ok=false if it isn't tracked.
func (m *Manager) PollStatus(key proofgraph.ProofKey) (Status, bool) {
	e, ok := m.tracker.Get(key)
	if !ok {
		return "", false
	}
	return e.Status, true
}

// FetchReceipt returns key's receipt if Completed, ErrNotReady otherwise.
func (m *Manager) FetchReceipt(key proofgraph.ProofKey) (proofgraph.ProofReceipt, error) {
	return m.db.FetchReceipt(key)
}

// Run sweeps for ready tasks every cfg.LoopInterval until ctx is canceled.
// Shutdown is cooperative: Run only checks ctx at sweep boundaries, it
// never interrupts a task already dispatched to a worker.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	for _, key := range m.tracker.ReadyPending() {
		m.inflightMu.Lock()
		alreadyDispatched := m.inflight[key]
		m.inflightMu.Unlock()
		if alreadyDispatched {
			continue
		}

		host := key.Host
		if m.tracker.InProgressCount(host) >= m.cfg.workersFor(host) {
			continue
		}

		prover, ok := m.provers[host]
		if !ok {
			m.logger.Printf("prooftask: no prover registered for host %q, leaving %s pending", host, key)
			continue
		}

		now := time.Now()
		if !m.tracker.MarkInProgress(key, now) {
			continue
		}
		m.inflightMu.Lock()
		m.inflight[key] = true
		m.inflightMu.Unlock()
		m.metrics.inFlight.WithLabelValues(string(host)).Inc()

		go m.runWorker(ctx, key, prover)
	}
}

func (m *Manager) runWorker(ctx context.Context, key proofgraph.ProofKey, prover Prover) {
	// dispatchID correlates this attempt's log lines; a failed task may be
	// redispatched later under the same ProofKey, so the key alone can't
	// distinguish one attempt's logs from the next.
	dispatchID := uuid.New().String()

	defer func() {
		m.inflightMu.Lock()
		delete(m.inflight, key)
		m.inflightMu.Unlock()
		m.metrics.inFlight.WithLabelValues(string(key.Host)).Dec()
	}()

	entry, ok := m.tracker.Get(key)
	if !ok {
		return
	}

	depReceipts := make(map[proofgraph.ProofKey]proofgraph.ProofReceipt, len(entry.Deps))
	for _, d := range entry.Deps {
		r, err := m.db.FetchReceipt(d)
		if err != nil {
			m.tracker.MarkFailed(key, time.Now(), fmt.Sprintf("fetch dep receipt %s: %v", d, err))
			m.metrics.tasksFailed.Inc()
			m.logger.Printf("prooftask: dispatch %s: %s: fetch dep receipt %s: %v", dispatchID, key, d, err)
			return
		}
		depReceipts[d] = r
	}

	m.logger.Printf("prooftask: dispatch %s: proving %s on host %q", dispatchID, key, key.Host)
	receipt, err := prover.Prove(ctx, key, depReceipts)
	if err != nil {
		m.tracker.MarkFailed(key, time.Now(), err.Error())
		m.metrics.tasksFailed.Inc()
		m.logger.Printf("prooftask: dispatch %s: %s failed: %v", dispatchID, key, err)
		return
	}

	if err := m.db.PutReceiptIfAbsent(key, receipt); err != nil {
		m.tracker.MarkFailed(key, time.Now(), fmt.Sprintf("persist receipt: %v", err))
		m.metrics.tasksFailed.Inc()
		m.logger.Printf("prooftask: dispatch %s: %s: persist receipt: %v", dispatchID, key, err)
		return
	}
	m.tracker.MarkCompleted(key, time.Now())
	m.metrics.tasksCompleted.Inc()
	m.logger.Printf("prooftask: dispatch %s: %s completed", dispatchID, key)
}

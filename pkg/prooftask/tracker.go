// Copyright 2025 Strata Contributors
//
// Package prooftask drives the proof dependency graph described by
// pkg/proofgraph to completion: a TaskTracker of in-flight tasks, a
// content-addressed ProofDatabase for finished receipts, and a manager
// loop that promotes ready tasks onto a bounded per-host worker pool.
package prooftask

import (
	"sync"
	"time"

	"github.com/strata-rollup/strata-asm/pkg/proofgraph"
)

// Status is a TaskEntry's place in its lifecycle. Pending transitions to
// InProgress transitions to exactly one of Completed or Failed. Failed is
// terminal: the scheduler never retries automatically.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TaskEntry is one node of the proof DAG currently tracked by the
// scheduler.
type TaskEntry struct {
	Key       proofgraph.ProofKey
	Deps      []proofgraph.ProofKey
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	Err       string // populated iff Status == StatusFailed
}

// depsCompleted reports whether every dependency of e is Completed,
// consulting tracker t for each dep's current status.
func (e *TaskEntry) depsCompleted(t *TaskTracker) bool {
	for _, d := range e.Deps {
		entry, ok := t.get(d)
		if !ok || entry.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// TaskTracker is the scheduler's in-memory bookkeeping: a map of
// ProofKey to TaskEntry plus a by-status secondary index. The mutex is
// held only across status mutations, never while a proof is running -
// proving happens entirely outside the lock.
type TaskTracker struct {
	mu       sync.Mutex
	tasks    map[proofgraph.ProofKey]*TaskEntry
	byStatus map[Status]map[proofgraph.ProofKey]bool
}

// NewTaskTracker constructs an empty tracker.
func NewTaskTracker() *TaskTracker {
	t := &TaskTracker{
		tasks:    make(map[proofgraph.ProofKey]*TaskEntry),
		byStatus: make(map[Status]map[proofgraph.ProofKey]bool),
	}
	for _, s := range []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed} {
		t.byStatus[s] = make(map[proofgraph.ProofKey]bool)
	}
	return t
}

func (t *TaskTracker) get(key proofgraph.ProofKey) (*TaskEntry, bool) {
	e, ok := t.tasks[key]
	return e, ok
}

// Get returns a copy of the entry for key, if tracked.
func (t *TaskTracker) Get(key proofgraph.ProofKey) (TaskEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.tasks[key]
	if !ok {
		return TaskEntry{}, false
	}
	return *e, true
}

// PutIfAbsent creates a new Pending task for key with the given
// dependencies if one doesn't already exist. It reports whether it created
// a new entry; a call on an existing key is a no-op, matching the
// at-most-once task-creation invariant double-submission relies on.
func (t *TaskTracker) PutIfAbsent(key proofgraph.ProofKey, deps []proofgraph.ProofKey, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tasks[key]; exists {
		return false
	}
	e := &TaskEntry{Key: key, Deps: deps, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	t.tasks[key] = e
	t.byStatus[StatusPending][key] = true
	return true
}

// ReadyPending returns every Pending task whose dependencies are all
// Completed, i.e. the tasks eligible to transition to InProgress this
// sweep.
func (t *TaskTracker) ReadyPending() []proofgraph.ProofKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ready []proofgraph.ProofKey
	for key := range t.byStatus[StatusPending] {
		if t.tasks[key].depsCompleted(t) {
			ready = append(ready, key)
		}
	}
	return ready
}

// InProgressCount returns how many tasks are currently InProgress on host.
func (t *TaskTracker) InProgressCount(host proofgraph.Host) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for key := range t.byStatus[StatusInProgress] {
		if key.Host == host {
			n++
		}
	}
	return n
}

// transition moves key from its current status to next, maintaining the
// secondary index, and returns false if key isn't tracked.
func (t *TaskTracker) transition(key proofgraph.ProofKey, next Status, now time.Time, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.tasks[key]
	if !ok {
		return false
	}
	delete(t.byStatus[e.Status], key)
	e.Status = next
	e.UpdatedAt = now
	e.Err = errMsg
	t.byStatus[next][key] = true
	return true
}

// MarkInProgress transitions key from Pending to InProgress.
func (t *TaskTracker) MarkInProgress(key proofgraph.ProofKey, now time.Time) bool {
	return t.transition(key, StatusInProgress, now, "")
}

// MarkCompleted transitions key to Completed.
func (t *TaskTracker) MarkCompleted(key proofgraph.ProofKey, now time.Time) bool {
	return t.transition(key, StatusCompleted, now, "")
}

// MarkFailed transitions key to Failed, a terminal state the scheduler
// never automatically retries from.
func (t *TaskTracker) MarkFailed(key proofgraph.ProofKey, now time.Time, reason string) bool {
	return t.transition(key, StatusFailed, now, reason)
}

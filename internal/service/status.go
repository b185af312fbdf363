package service

import (
	"sync"
	"time"

	"askgraph/internal/indexer"
)

// IndexState is the state of the most recent indexing run.
type IndexState string

const (
	StateIdle      IndexState = "idle"
	StateRunning   IndexState = "running"
	StateSucceeded IndexState = "succeeded"
	StateFailed    IndexState = "failed"
)

// Progress counts embedded chunks during a build.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Status describes the index and the latest indexing run.
type Status struct {
	State         IndexState      `json:"state"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Progress      Progress        `json:"progress"`
	LastReport    *indexer.Report `json:"last_report,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	HandleID      string          `json:"handle_id,omitempty"`
	IndexedChunks int             `json:"indexed_chunks"`
}

// Tracker records indexing runs. At most one run is active at a time.
type Tracker struct {
	mu     sync.Mutex
	status Status
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{status: Status{State: StateIdle}}
}

// Begin marks a run as started. It returns false if a run is already active.
func (t *Tracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.State == StateRunning {
		return false
	}
	now := time.Now()
	t.status.State = StateRunning
	t.status.StartedAt = &now
	t.status.FinishedAt = nil
	t.status.Progress = Progress{}
	t.status.LastError = ""
	return true
}

// Progress records build progress. It has the signature of vectorstore.ProgressFunc.
func (t *Tracker) Progress(done, total int) {
	t.mu.Lock()
	t.status.Progress = Progress{Done: done, Total: total}
	t.mu.Unlock()
}

// Finish ends the active run with its report or error.
func (t *Tracker) Finish(report *indexer.Report, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.status.FinishedAt = &now
	if err != nil {
		t.status.State = StateFailed
		t.status.LastError = err.Error()
		return
	}
	t.status.State = StateSucceeded
	t.status.LastReport = report
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

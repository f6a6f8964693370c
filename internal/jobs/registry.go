// Package jobs implements the in-memory ingestion job registry (spec
// section 4.5, ambient to the dependency order but required for the
// /ingest background-processing flow): each job moves through
// Processing -> Completed | Failed and never leaves a terminal state.
package jobs

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State is the tag of the job status union.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status is a tagged union: only the fields matching Stage are meaningful.
// Processing carries Progress/Total, Completed carries RecordsProcessed,
// Failed carries Err.
type Status struct {
	Stage            State
	Progress         int
	Total            int // 0 means unknown
	RecordsProcessed int
	Err              string
}

// MarshalJSON renders the union as a single "status"-tagged object instead
// of exposing every field regardless of Stage.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s.Stage {
	case StateCompleted:
		return json.Marshal(struct {
			Status           State `json:"status"`
			RecordsProcessed int   `json:"records_processed"`
		}{s.Stage, s.RecordsProcessed})
	case StateFailed:
		return json.Marshal(struct {
			Status State  `json:"status"`
			Error  string `json:"error"`
		}{s.Stage, s.Err})
	default:
		return json.Marshal(struct {
			Status   State `json:"status"`
			Progress int   `json:"progress"`
			Total    int   `json:"total,omitempty"`
		}{s.Stage, s.Progress, s.Total})
	}
}

// Registry tracks ingestion jobs by ID, guarded by an RWMutex since writes
// (progress updates) are far more frequent than the rare concurrent reads
// from a status-polling client.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Status
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Status)}
}

// Start allocates a new job ID in the Processing stage with progress 0.
func (r *Registry) Start() string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = Status{Stage: StateProcessing, Progress: 0}
	return id
}

// ReportProgress updates a Processing job's progress count. It is a no-op
// (not a panic) if the job has already reached a terminal state, since
// progress callbacks can race a fast completion.
func (r *Registry) ReportProgress(id string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.jobs[id]
	if !ok || current.Stage != StateProcessing {
		return
	}
	current.Progress = progress
	r.jobs[id] = current
}

// Complete transitions a job to Completed. Calling this on a job already in
// a terminal state is a programmer error and panics, matching the
// tagged-variant transition table's terminal-state invariant.
func (r *Registry) Complete(id string, recordsProcessed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustBeNonTerminal(id)
	r.jobs[id] = Status{Stage: StateCompleted, RecordsProcessed: recordsProcessed}
}

// Fail transitions a job to Failed. Same terminal-state panic rule as Complete.
func (r *Registry) Fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustBeNonTerminal(id)
	r.jobs[id] = Status{Stage: StateFailed, Err: err.Error()}
}

func (r *Registry) mustBeNonTerminal(id string) {
	current, ok := r.jobs[id]
	if !ok {
		return
	}
	if current.Stage == StateCompleted || current.Stage == StateFailed {
		panic(fmt.Sprintf("jobs: job %q already in terminal state %q", id, current.Stage))
	}
}

// Get returns a job's current status.
func (r *Registry) Get(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.jobs[id]
	return s, ok
}

// CountByStage returns the number of jobs currently in each stage, used by
// the metrics gauges.
func (r *Registry) CountByStage() map[State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[State]int{StateProcessing: 0, StateCompleted: 0, StateFailed: 0}
	for _, s := range r.jobs {
		counts[s.Stage]++
	}
	return counts
}

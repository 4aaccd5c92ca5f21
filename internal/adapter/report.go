package adapter

import (
	"time"

	"github.com/google/uuid"
)

// Action names what the sync loop was doing with a record.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// RecordResult is the outcome for one record in one sync pass.
type RecordResult struct {
	ID     string
	Action Action
	Err    error
}

// OK reports whether the record reached its target state.
func (r RecordResult) OK() bool { return r.Err == nil }

// Report aggregates one entity's sync pass. UI surfaces render the counts;
// the per-record results exist for logs and the dashboard.
type Report struct {
	RunID     string
	Entity    string
	StartedAt time.Time
	Succeeded int
	Failed    int
	Results   []RecordResult
}

// NewReport starts an empty report for one entity pass.
func NewReport(entity string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Entity:    entity,
		StartedAt: time.Now().UTC(),
	}
}

func (r *Report) ok(id string, action Action) {
	r.Succeeded++
	r.Results = append(r.Results, RecordResult{ID: id, Action: action})
}

func (r *Report) fail(id string, action Action, err error) {
	r.Failed++
	r.Results = append(r.Results, RecordResult{ID: id, Action: action, Err: err})
}

// NothingToSync reports whether the pass found no waiting or tombstoned
// records at all.
func (r *Report) NothingToSync() bool { return len(r.Results) == 0 }

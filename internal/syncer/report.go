package syncer

import (
	"errors"
	"time"

	"github.com/steveyegge/mealsync/internal/repair"
	"github.com/steveyegge/mealsync/internal/types"
)

// State is a step of the per-collection pipeline.
type State string

const (
	StateIdle          State = "idle"
	StateFetchLocal    State = "fetch_local"
	StateFetchRemote   State = "fetch_remote"
	StateMerge         State = "merge"
	StateValidate      State = "validate"
	StatePersistLocal  State = "persist_local"
	StatePersistRemote State = "persist_remote"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// CollectionReport is the outcome of one collection pipeline.
type CollectionReport struct {
	Collection types.Collection `json:"collection"`
	State      State            `json:"state"`
	// FailedAt is the step that failed when State is StateFailed.
	FailedAt State `json:"failed_at,omitempty"`

	Merged     int `json:"merged"`
	LocalOnly  int `json:"local_only"`
	RemoteOnly int `json:"remote_only"`
	Pushed     int `json:"pushed"`
	// Skipped counts records that could not be decoded on either side.
	Skipped int `json:"skipped"`
	// Removed counts item references dropped by integrity validation.
	Removed  int      `json:"removed"`
	Narrowed []string `json:"narrowed,omitempty"`

	Notes    []string      `json:"notes,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration_ns"`

	errs []error
}

func newCollectionReport(c types.Collection) *CollectionReport {
	return &CollectionReport{Collection: c, State: StateIdle}
}

func (r *CollectionReport) enter(s State) { r.State = s }

func (r *CollectionReport) fail(err error) {
	r.FailedAt = r.State
	r.State = StateFailed
	r.errs = append(r.errs, err)
	r.Errors = append(r.Errors, err.Error())
}

func (r *CollectionReport) note(s string) { r.Notes = append(r.Notes, s) }

// Failed reports whether the pipeline ended in StateFailed.
func (r *CollectionReport) Failed() bool { return r.State == StateFailed }

// Err joins the errors recorded for the collection, or returns nil.
func (r *CollectionReport) Err() error { return errors.Join(r.errs...) }

// Report is the outcome of SyncAll. It is always returned, even when every
// collection failed.
type Report struct {
	UserID      string                                 `json:"user_id"`
	StartedAt   time.Time                              `json:"started_at"`
	FinishedAt  time.Time                              `json:"finished_at"`
	Collections map[types.Collection]*CollectionReport `json:"collections"`

	// Balance is nil when repair could not run.
	Balance     *types.PointBalance `json:"balance,omitempty"`
	RepairStats *repair.Stats       `json:"repair_stats,omitempty"`

	// Errors holds failures outside any collection: repair, the points
	// cache, the last-sync marker.
	Errors []string `json:"errors,omitempty"`
	errs   []error
}

func (r *Report) fail(err error) {
	r.errs = append(r.errs, err)
	r.Errors = append(r.Errors, err.Error())
}

// OK reports whether every collection finished and no other step failed.
func (r *Report) OK() bool {
	if len(r.errs) > 0 {
		return false
	}
	for _, c := range r.Collections {
		if c.Failed() {
			return false
		}
	}
	return true
}

// FailedCollections lists failed collections in report order.
func (r *Report) FailedCollections() []types.Collection {
	var out []types.Collection
	for _, c := range types.SyncedCollections {
		if cr, ok := r.Collections[c]; ok && cr.Failed() {
			out = append(out, c)
		}
	}
	return out
}

// Err joins every error in the report, or returns nil.
func (r *Report) Err() error {
	all := append([]error(nil), r.errs...)
	for _, c := range types.SyncedCollections {
		if cr, ok := r.Collections[c]; ok {
			all = append(all, cr.errs...)
		}
	}
	return errors.Join(all...)
}

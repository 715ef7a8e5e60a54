package domain

import "time"

// TransitionRecord is one committed state change in an instance's audit
// trail. Records are append-only: once written they are never updated or
// deleted by any code path, and the ledger exposes no entry point to do
// so. The ordered sequence of records for an instance is the sole source
// of truth for its current state.
//
// Each record carries two independent clocks. EffectiveAt is the business
// truth: caller-supplied, it may lie in the past for backdated corrections
// or in the future for scheduled facts. RecordedAt is the system truth:
// assigned at write time, monotonically non-decreasing, never settable by
// the caller. Queries about what the business believed at time T filter on
// EffectiveAt; queries about what the system knew at wall-clock T filter
// on RecordedAt. Corrections never overwrite RecordedAt.
type TransitionRecord struct {
	ID         int64
	GUID       string
	InstanceID int64
	FromState  string
	ToState    string

	// Actor is an opaque identity recorded verbatim. The engine never
	// authorizes or authenticates it.
	Actor string

	EffectiveAt time.Time
	RecordedAt  time.Time

	Metadata map[string]any
}

// Clone returns a deep copy of the record.
func (r *TransitionRecord) Clone() *TransitionRecord {
	c := *r
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

package domain

import "time"

// Subject is a stable, type-erased reference to whatever external entity
// an instance is tracking. The engine stores the pair verbatim: it never
// dereferences the subject, validates its existence, or cascades deletes
// into it. Keeping the pair resolvable is the caller's responsibility.
type Subject struct {
	Kind string
	ID   string
}

// IsZero reports whether the subject reference is unset.
func (s Subject) IsZero() bool {
	return s.Kind == "" && s.ID == ""
}

// Instance is one running occurrence of a definition, bound to a subject.
//
// State is a read-optimization cache of the ledger's tail: it always
// equals the ToState of the instance's most recent committed transition,
// or the definition's initial state when no transitions exist. It is
// mutated only through the transition engine; writing it directly is an
// architectural violation.
type Instance struct {
	ID            int64
	GUID          string
	DefinitionID  int64
	DefinitionKey string
	Subject       Subject
	State         string

	// Version is the optimistic-concurrency counter. Every committed
	// transition increments it; a commit whose expected version no longer
	// matches the stored row fails with ConcurrentModificationError.
	Version int64

	CreatedBy string
	Metadata  map[string]any

	StartedAt time.Time

	// EndedAt is stamped when the instance enters a terminal state. The
	// record itself persists for audit purposes.
	EndedAt *time.Time

	UpdatedAt time.Time
}

// Ended reports whether the instance has reached a terminal state.
func (i *Instance) Ended() bool {
	return i.EndedAt != nil
}

// Clone returns a deep copy of the instance. Repositories hand out clones
// so callers cannot mutate stored entities without going through a commit.
func (i *Instance) Clone() *Instance {
	c := *i
	if i.EndedAt != nil {
		t := *i.EndedAt
		c.EndedAt = &t
	}
	if i.Metadata != nil {
		c.Metadata = make(map[string]any, len(i.Metadata))
		for k, v := range i.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

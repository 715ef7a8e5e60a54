package domain

import "time"

// DefinitionRepository persists workflow definitions. Implementations
// live in internal/infrastructure/sqlite and internal/workflows/repository.
type DefinitionRepository interface {
	// Insert persists a new definition and sets its ID. Returns
	// DefinitionExistsError if the key is taken.
	Insert(def *Definition) error

	// Update rewrites an existing definition row. The freeze check is the
	// definition store's responsibility; repositories apply what they are
	// given.
	Update(def *Definition) error

	// FindByKey retrieves a definition by key. Returns
	// DefinitionNotFoundError if absent.
	FindByKey(key string) (*Definition, error)

	// FindByID retrieves a definition by its internal ID.
	FindByID(id int64) (*Definition, error)

	// List returns definitions ordered by key. Inactive definitions are
	// included only when requested.
	List(includeInactive bool) ([]*Definition, error)

	// SetActive flips the active flag without touching the graph.
	SetActive(key string, active bool) error

	// InstanceCount reports how many instances reference the definition.
	InstanceCount(definitionID int64) (int64, error)
}

// InstanceRepository persists workflow instances. Instance state is only
// ever advanced through Ledger.Append; this interface deliberately has no
// state-update method.
type InstanceRepository interface {
	// Insert persists a new instance at its definition's initial state
	// and sets its ID.
	Insert(inst *Instance) error

	// FindByGUID retrieves an instance. Returns InstanceNotFoundError if
	// absent.
	FindByGUID(guid string) (*Instance, error)

	// FindBySubject returns all instances bound to the subject, newest
	// first.
	FindBySubject(subject Subject) ([]*Instance, error)
}

// Ledger is the append-only audit trail of committed transitions. Its
// public surface is append and reads; no update or delete entry point
// exists, which makes record immutability structural rather than
// conventional.
type Ledger interface {
	// Append commits a transition: it persists the record and advances
	// the instance's cached state, version, and ended-at stamp as a
	// single atomic unit. The instance's Version field is the expected
	// version; if the stored row has moved, Append fails with
	// ConcurrentModificationError and persists nothing. On success the
	// passed instance is updated in place to the committed row.
	Append(inst *Instance, rec *TransitionRecord) error

	// History returns the instance's committed transitions in append
	// order.
	History(instanceID int64) ([]*TransitionRecord, error)

	// AsOf returns the latest record whose EffectiveAt is at or before
	// the given business time, or nil if the instance had no committed
	// transitions as of that time.
	AsOf(instanceID int64, at time.Time) (*TransitionRecord, error)

	// RecordedBetween returns records whose RecordedAt falls within
	// [from, to], in append order. This answers what the system knew
	// during a wall-clock window, independent of business time.
	RecordedBetween(instanceID int64, from, to time.Time) ([]*TransitionRecord, error)
}

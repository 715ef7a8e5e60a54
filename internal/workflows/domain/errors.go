package domain

import (
	"fmt"
	"strings"

	"github.com/zjrosen/flowstate/internal/workflows/graph"
)

// DefinitionNotFoundError indicates that no definition with the given key
// exists.
type DefinitionNotFoundError struct {
	Key string
}

// Error implements the error interface.
func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("workflow definition not found: key=%q", e.Key)
}

// DefinitionExistsError indicates that a definition with the given key is
// already registered.
type DefinitionExistsError struct {
	Key string
}

// Error implements the error interface.
func (e *DefinitionExistsError) Error() string {
	return fmt.Sprintf("workflow definition already registered: key=%q", e.Key)
}

// InvalidGraphError indicates that a definition failed graph validation.
// It carries the full list of violations, not just the first.
type InvalidGraphError struct {
	Key        string
	Violations []graph.Violation
}

// Error implements the error interface.
func (e *InvalidGraphError) Error() string {
	return fmt.Sprintf("invalid workflow graph for %q: %s",
		e.Key, strings.Join(graph.Messages(e.Violations), "; "))
}

// DefinitionFrozenError indicates an attempted graph edit on a definition
// already referenced by instances. Frozen definitions evolve by
// registering a new definition under a new key, never by mutation.
type DefinitionFrozenError struct {
	Key       string
	Instances int64
}

// Error implements the error interface.
func (e *DefinitionFrozenError) Error() string {
	return fmt.Sprintf("workflow definition %q is frozen: referenced by %d instance(s)", e.Key, e.Instances)
}

// DefinitionInactiveError indicates an attempt to start an instance
// against a deactivated definition.
type DefinitionInactiveError struct {
	Key string
}

// Error implements the error interface.
func (e *DefinitionInactiveError) Error() string {
	return fmt.Sprintf("workflow definition %q is inactive", e.Key)
}

// InstanceNotFoundError indicates that no instance with the given GUID
// exists.
type InstanceNotFoundError struct {
	GUID string
}

// Error implements the error interface.
func (e *InstanceNotFoundError) Error() string {
	return fmt.Sprintf("workflow instance not found: guid=%q", e.GUID)
}

// InstanceTerminatedError indicates a transition attempted from a terminal
// state. Terminal states accept no further transitions; a workflow that
// needs to reopen must declare an explicit non-terminal reopened state in
// its graph.
type InstanceTerminatedError struct {
	GUID  string
	State string
}

// Error implements the error interface.
func (e *InstanceTerminatedError) Error() string {
	return fmt.Sprintf("instance %q is in terminal state %q and accepts no transitions", e.GUID, e.State)
}

// IllegalTransitionError indicates a requested target that is not a legal
// successor of the instance's current state.
type IllegalTransitionError struct {
	GUID      string
	FromState string
	ToState   string
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %q -> %q for instance %q", e.FromState, e.ToState, e.GUID)
}

// TransitionBlockedError indicates that custom transition validators
// rejected an otherwise graph-legal transition. Soft is true when the
// rejection came only from warnings the caller declined to override.
type TransitionBlockedError struct {
	Reasons []string
	Soft    bool
}

// Error implements the error interface.
func (e *TransitionBlockedError) Error() string {
	kind := "blocked"
	if e.Soft {
		kind = "blocked by unoverridden warnings"
	}
	return fmt.Sprintf("transition %s: %s", kind, strings.Join(e.Reasons, "; "))
}

// ConcurrentModificationError indicates that a concurrent transition
// committed first and the instance's version moved underneath this
// attempt. This is the only retryable failure: callers should re-read the
// instance and re-attempt.
type ConcurrentModificationError struct {
	GUID    string
	Version int64
}

// Error implements the error interface.
func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of instance %q (expected version %d)", e.GUID, e.Version)
}

// LedgerImmutabilityError indicates an attempted update or delete of a
// committed transition record. The ledger exposes no such operation, so
// this surfaces only when a bypass path (raw SQL against the store) trips
// the structural guard.
type LedgerImmutabilityError struct {
	Op string
}

// Error implements the error interface.
func (e *LedgerImmutabilityError) Error() string {
	return fmt.Sprintf("transition records are immutable: attempted %s", e.Op)
}

// ValidatorNotFoundError indicates that a definition references a
// transition validator name that is not registered with the engine.
type ValidatorNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *ValidatorNotFoundError) Error() string {
	return fmt.Sprintf("transition validator not registered: %q", e.Name)
}

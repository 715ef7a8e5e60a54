package engine

import (
	"sync"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// TransitionValidator is a pluggable check that runs after the structural
// edge check passes. Validators inspect the instance and the attempted
// edge and return hard blocks (the transition fails) and soft warnings
// (the transition fails unless the caller sets OverrideWarnings).
//
// Validators are orthogonal to graph validation: they never see
// transitions the graph already forbids.
type TransitionValidator interface {
	Validate(inst *domain.Instance, fromState, toState string) (blocks []string, warnings []string)
}

// ValidatorFunc adapts a function to the TransitionValidator interface.
type ValidatorFunc func(inst *domain.Instance, fromState, toState string) (blocks []string, warnings []string)

// Validate implements TransitionValidator.
func (f ValidatorFunc) Validate(inst *domain.Instance, fromState, toState string) ([]string, []string) {
	return f(inst, fromState, toState)
}

// ValidatorRegistry maps validator names to implementations. Definitions
// reference validators by name; the engine resolves them at transition
// time so a definition can be authored before its validators are wired.
type ValidatorRegistry struct {
	mu         sync.RWMutex
	validators map[string]TransitionValidator
}

// NewValidatorRegistry creates an empty registry.
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{validators: make(map[string]TransitionValidator)}
}

// Register binds a name to a validator, replacing any previous binding.
func (r *ValidatorRegistry) Register(name string, v TransitionValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = v
}

// Resolve looks up validators by name. An unknown name fails with
// ValidatorNotFoundError.
func (r *ValidatorRegistry) Resolve(names []string) ([]TransitionValidator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TransitionValidator, 0, len(names))
	for _, name := range names {
		v, ok := r.validators[name]
		if !ok {
			return nil, &domain.ValidatorNotFoundError{Name: name}
		}
		out = append(out, v)
	}
	return out, nil
}

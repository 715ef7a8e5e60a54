// Package domain contains the core workflow entities and the repository
// contracts their persistence implementations satisfy. Entities here are
// domain-agnostic: a definition describes an arbitrary finite-state graph
// and an instance tracks one occurrence of it against an opaque subject.
package domain

import "time"

// Definition is a named, validated finite-state graph template.
//
// Once a definition is referenced by at least one instance its graph
// fields (States, Transitions, InitialState, TerminalStates) are frozen;
// evolving a workflow requires registering a new definition under a new
// key. The definition store enforces this.
type Definition struct {
	ID   int64
	Key  string
	Name string

	// States is the ordered set of declared state names.
	States []string

	// Transitions maps each state to its legal successor states.
	Transitions map[string][]string

	// InitialState is the state new instances start in.
	InitialState string

	// TerminalStates are sink states; an instance in one accepts no
	// further transitions.
	TerminalStates []string

	// Validators names transition validators registered with the engine
	// that run on every transition of instances of this definition.
	Validators []string

	// Active controls whether new instances may be started. Deactivating
	// a definition never affects existing instances or history.
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasState reports whether s is a declared state of the definition.
func (d *Definition) HasState(s string) bool {
	for _, st := range d.States {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a terminal state of the definition.
func (d *Definition) IsTerminal(s string) bool {
	for _, ts := range d.TerminalStates {
		if ts == s {
			return true
		}
	}
	return false
}

// AllowedFrom returns the legal successor states from s. Terminal states
// have no successors regardless of the transition map.
func (d *Definition) AllowedFrom(s string) []string {
	if d.IsTerminal(s) {
		return nil
	}
	return d.Transitions[s]
}

// Clone returns a deep copy. Repositories and caches hand out clones so
// callers can never mutate shared graph state.
func (d *Definition) Clone() *Definition {
	c := *d
	c.States = append([]string(nil), d.States...)
	c.TerminalStates = append([]string(nil), d.TerminalStates...)
	c.Validators = append([]string(nil), d.Validators...)
	if d.Transitions != nil {
		c.Transitions = make(map[string][]string, len(d.Transitions))
		for k, v := range d.Transitions {
			c.Transitions[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// GraphEquals reports whether the other definition declares the same
// graph: same states in order, same edges, same initial and terminal
// states. Name, validators, and the active flag are not part of the
// graph and are ignored.
func (d *Definition) GraphEquals(other *Definition) bool {
	if d.InitialState != other.InitialState {
		return false
	}
	if !equalStrings(d.States, other.States) || !equalStrings(d.TerminalStates, other.TerminalStates) {
		return false
	}
	if len(d.Transitions) != len(other.Transitions) {
		return false
	}
	for from, targets := range d.Transitions {
		if !equalStrings(targets, other.Transitions[from]) {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Package graph provides pure validation for workflow definition graphs.
// It has no persistence or model concerns; the definition store calls it
// before publishing a definition, and tests exercise it directly.
package graph

import "fmt"

// Rule identifies a structural rule a definition graph can violate.
type Rule string

// Graph validation rules, checked in declaration order.
const (
	// RuleInitialUnknown fires when the initial state is not a declared state.
	RuleInitialUnknown Rule = "initial_unknown"

	// RuleTerminalUnknown fires when a terminal state is not a declared state.
	RuleTerminalUnknown Rule = "terminal_unknown"

	// RuleDuplicateState fires when the same state name is declared twice.
	RuleDuplicateState Rule = "duplicate_state"

	// RuleSourceUnknown fires when a transition source is not a declared state.
	RuleSourceUnknown Rule = "transition_source_unknown"

	// RuleTargetUnknown fires when a transition target is not a declared state.
	RuleTargetUnknown Rule = "transition_target_unknown"

	// RuleTerminalNotSink fires when a terminal state has outgoing transitions.
	RuleTerminalNotSink Rule = "terminal_not_sink"

	// RuleUnreachable fires when a state cannot be reached from the initial state.
	RuleUnreachable Rule = "state_unreachable"
)

// Violation describes one violated rule in a definition graph.
// State carries the offending state name; Target is set only for
// transition-edge violations.
type Violation struct {
	Rule   Rule
	State  string
	Target string
}

// String returns a human-readable description of the violation.
func (v Violation) String() string {
	switch v.Rule {
	case RuleInitialUnknown:
		return fmt.Sprintf("initial_state %q not in states", v.State)
	case RuleTerminalUnknown:
		return fmt.Sprintf("terminal_state %q not in states", v.State)
	case RuleDuplicateState:
		return fmt.Sprintf("state %q declared more than once", v.State)
	case RuleSourceUnknown:
		return fmt.Sprintf("transition from unknown state %q", v.State)
	case RuleTargetUnknown:
		return fmt.Sprintf("transition from %q to unknown state %q", v.State, v.Target)
	case RuleTerminalNotSink:
		return fmt.Sprintf("terminal state %q has outgoing transitions", v.State)
	case RuleUnreachable:
		return fmt.Sprintf("state %q unreachable from initial_state", v.State)
	default:
		return fmt.Sprintf("%s: %q", v.Rule, v.State)
	}
}

// Validate checks a workflow definition graph for structural soundness.
// It returns every violation found, not just the first, so callers can
// report all problems in a malformed definition at once. An empty result
// means the graph is valid.
//
// Validate is total: it terminates and never panics regardless of input,
// including nil slices and maps.
func Validate(states []string, transitions map[string][]string, initial string, terminals []string) []Violation {
	var violations []Violation

	declared := make(map[string]struct{}, len(states))
	for _, s := range states {
		if _, dup := declared[s]; dup {
			violations = append(violations, Violation{Rule: RuleDuplicateState, State: s})
			continue
		}
		declared[s] = struct{}{}
	}

	if _, ok := declared[initial]; !ok {
		violations = append(violations, Violation{Rule: RuleInitialUnknown, State: initial})
	}

	for _, ts := range terminals {
		if _, ok := declared[ts]; !ok {
			violations = append(violations, Violation{Rule: RuleTerminalUnknown, State: ts})
		}
	}

	for from, targets := range transitions {
		if _, ok := declared[from]; !ok {
			violations = append(violations, Violation{Rule: RuleSourceUnknown, State: from})
		}
		for _, to := range targets {
			if _, ok := declared[to]; !ok {
				violations = append(violations, Violation{Rule: RuleTargetUnknown, State: from, Target: to})
			}
		}
	}

	for _, ts := range terminals {
		if len(transitions[ts]) > 0 {
			violations = append(violations, Violation{Rule: RuleTerminalNotSink, State: ts})
		}
	}

	// Reachability only makes sense from a valid source.
	if _, ok := declared[initial]; ok {
		reached := Reachable(initial, transitions)
		for _, s := range states {
			if _, ok := reached[s]; !ok {
				violations = append(violations, Violation{Rule: RuleUnreachable, State: s})
			}
		}
	}

	return violations
}

// Reachable returns the set of states reachable from start by breadth-first
// traversal of the transition adjacency list, including start itself.
func Reachable(start string, transitions map[string][]string) map[string]struct{} {
	visited := map[string]struct{}{start: {}}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range transitions[current] {
			if _, seen := visited[next]; !seen {
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}

	return visited
}

// Messages flattens violations into human-readable strings.
func Messages(violations []Violation) []string {
	if len(violations) == 0 {
		return nil
	}
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.String()
	}
	return msgs
}

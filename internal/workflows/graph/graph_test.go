package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidate_ValidGraph(t *testing.T) {
	states := []string{"pending", "active", "completed"}
	transitions := map[string][]string{"pending": {"active"}, "active": {"completed"}}

	violations := Validate(states, transitions, "pending", []string{"completed"})

	require.Empty(t, violations)
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name        string
		states      []string
		transitions map[string][]string
		initial     string
		terminals   []string
		want        Violation
	}{
		{
			name:        "initial state not declared",
			states:      []string{"pending", "active", "completed"},
			transitions: map[string][]string{"pending": {"active"}},
			initial:     "unknown",
			terminals:   []string{"completed"},
			want:        Violation{Rule: RuleInitialUnknown, State: "unknown"},
		},
		{
			name:        "terminal state not declared",
			states:      []string{"pending", "active", "completed"},
			transitions: map[string][]string{"pending": {"active"}, "active": {"completed"}},
			initial:     "pending",
			terminals:   []string{"finished"},
			want:        Violation{Rule: RuleTerminalUnknown, State: "finished"},
		},
		{
			name:        "duplicate state declaration",
			states:      []string{"pending", "active", "pending", "completed"},
			transitions: map[string][]string{"pending": {"active"}, "active": {"completed"}},
			initial:     "pending",
			terminals:   []string{"completed"},
			want:        Violation{Rule: RuleDuplicateState, State: "pending"},
		},
		{
			name:        "transition from unknown state",
			states:      []string{"pending", "active", "completed"},
			transitions: map[string][]string{"pending": {"active"}, "active": {"completed"}, "ghost": {"completed"}},
			initial:     "pending",
			terminals:   []string{"completed"},
			want:        Violation{Rule: RuleSourceUnknown, State: "ghost"},
		},
		{
			name:        "transition to unknown state",
			states:      []string{"pending", "active", "completed"},
			transitions: map[string][]string{"pending": {"active"}, "active": {"completed", "unknown"}},
			initial:     "pending",
			terminals:   []string{"completed"},
			want:        Violation{Rule: RuleTargetUnknown, State: "active", Target: "unknown"},
		},
		{
			name:        "terminal state with outgoing edges",
			states:      []string{"pending", "active", "completed"},
			transitions: map[string][]string{"pending": {"active"}, "active": {"completed"}, "completed": {"pending"}},
			initial:     "pending",
			terminals:   []string{"completed"},
			want:        Violation{Rule: RuleTerminalNotSink, State: "completed"},
		},
		{
			name:        "orphan state unreachable from initial",
			states:      []string{"pending", "active", "completed", "orphan"},
			transitions: map[string][]string{"pending": {"active"}, "active": {"completed"}},
			initial:     "pending",
			terminals:   []string{"completed"},
			want:        Violation{Rule: RuleUnreachable, State: "orphan"},
		},
		{
			name:        "unreachable terminal state",
			states:      []string{"pending", "active", "completed", "cancelled"},
			transitions: map[string][]string{"pending": {"active"}, "active": {"completed"}},
			initial:     "pending",
			terminals:   []string{"completed", "cancelled"},
			want:        Violation{Rule: RuleUnreachable, State: "cancelled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := Validate(tt.states, tt.transitions, tt.initial, tt.terminals)
			assert.Contains(t, violations, tt.want)
		})
	}
}

func TestValidate_SelfLoopsAllowed(t *testing.T) {
	states := []string{"pending", "active", "completed"}
	transitions := map[string][]string{
		"pending": {"active", "pending"},
		"active":  {"completed", "active"},
	}

	violations := Validate(states, transitions, "pending", []string{"completed"})

	require.Empty(t, violations)
}

func TestValidate_SingleStateGraph(t *testing.T) {
	// A graph with no edges is valid when the initial state is terminal.
	violations := Validate([]string{"done"}, nil, "done", []string{"done"})
	require.Empty(t, violations)
}

func TestValidate_NilInputs(t *testing.T) {
	violations := Validate(nil, nil, "", nil)
	require.NotEmpty(t, violations, "empty graph cannot contain its initial state")
	assert.Contains(t, violations, Violation{Rule: RuleInitialUnknown, State: ""})
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	// One malformed definition, every problem reported at once.
	states := []string{"a", "b", "orphan"}
	transitions := map[string][]string{
		"a": {"b", "missing"},
		"b": {},
		"x": {"a"},
	}

	violations := Validate(states, transitions, "nope", []string{"b", "gone"})

	rules := make(map[Rule]bool)
	for _, v := range violations {
		rules[v.Rule] = true
	}
	assert.True(t, rules[RuleInitialUnknown])
	assert.True(t, rules[RuleTerminalUnknown])
	assert.True(t, rules[RuleSourceUnknown])
	assert.True(t, rules[RuleTargetUnknown])
}

func TestReachable_FollowsEdges(t *testing.T) {
	transitions := map[string][]string{
		"a": {"b"},
		"b": {"c", "a"},
		"d": {"e"},
	}

	reached := Reachable("a", transitions)

	assert.Len(t, reached, 3)
	assert.Contains(t, reached, "a")
	assert.Contains(t, reached, "b")
	assert.Contains(t, reached, "c")
	assert.NotContains(t, reached, "d")
	assert.NotContains(t, reached, "e")
}

func TestMessages(t *testing.T) {
	require.Nil(t, Messages(nil))

	msgs := Messages([]Violation{
		{Rule: RuleUnreachable, State: "orphan"},
		{Rule: RuleTargetUnknown, State: "a", Target: "z"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, `state "orphan" unreachable from initial_state`, msgs[0])
	assert.Equal(t, `transition from "a" to unknown state "z"`, msgs[1])
}

// ============================================================================
// Property-Based Tests
// ============================================================================

// TestProperty_OrphansAreExactlyUnreachableStates generates random graphs and
// verifies the validator flags exactly the states BFS cannot reach from the
// initial state.
func TestProperty_OrphansAreExactlyUnreachableStates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numStates := rapid.IntRange(1, 12).Draw(t, "numStates")
		states := make([]string, numStates)
		for i := range states {
			states[i] = fmt.Sprintf("s%d", i)
		}

		// Random adjacency list over declared states only, no terminals,
		// so the only possible violations are unreachability.
		transitions := make(map[string][]string)
		for _, from := range states {
			numEdges := rapid.IntRange(0, numStates).Draw(t, "edges-"+from)
			for j := 0; j < numEdges; j++ {
				to := rapid.SampledFrom(states).Draw(t, fmt.Sprintf("edge-%s-%d", from, j))
				transitions[from] = append(transitions[from], to)
			}
		}

		initial := rapid.SampledFrom(states).Draw(t, "initial")

		violations := Validate(states, transitions, initial, nil)

		reached := Reachable(initial, transitions)
		flagged := make(map[string]bool)
		for _, v := range violations {
			if v.Rule != RuleUnreachable {
				t.Fatalf("unexpected violation %v for well-formed graph", v)
			}
			flagged[v.State] = true
		}

		for _, s := range states {
			_, reachable := reached[s]
			if reachable == flagged[s] {
				t.Errorf("state %s: reachable=%v but flagged=%v", s, reachable, flagged[s])
			}
		}
	})
}

// TestProperty_ValidateIsTotal verifies Validate terminates and returns a
// decisive answer on arbitrary, possibly nonsensical input.
func TestProperty_ValidateIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		states := rapid.SliceOfN(rapid.StringMatching(`[a-c]{0,2}`), 0, 8).Draw(t, "states")
		transitions := rapid.MapOf(
			rapid.StringMatching(`[a-d]{0,2}`),
			rapid.SliceOfN(rapid.StringMatching(`[a-d]{0,2}`), 0, 4),
		).Draw(t, "transitions")
		initial := rapid.StringMatching(`[a-d]{0,2}`).Draw(t, "initial")
		terminals := rapid.SliceOfN(rapid.StringMatching(`[a-d]{0,2}`), 0, 4).Draw(t, "terminals")

		// Must not panic, and a graph that validates clean must actually
		// declare its initial state.
		violations := Validate(states, transitions, initial, terminals)
		if len(violations) == 0 {
			found := false
			for _, s := range states {
				if s == initial {
					found = true
				}
			}
			if !found {
				t.Errorf("graph validated clean but initial %q not declared", initial)
			}
		}
	})
}

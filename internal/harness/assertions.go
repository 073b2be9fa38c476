package harness

import (
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v -> %s %v\n",
				event.Seq, event.Host, event.Action, event.Args, event.Case, event.Result)
		}
	}

	return buf.String()
}

// matchesStep reports whether event is the assertion's action, on its host
// if one is named.
func matchesStep(event TraceEvent, assertion Assertion, action string) bool {
	if event.Action != action {
		return false
	}
	return assertion.Host == "" || event.Host == assertion.Host
}

// assertTraceContains checks if the trace contains a step matching the
// specified action, host and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchesStep(event, assertion, assertion.Action) && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s on %q with args %v", assertion.Action, assertion.Host, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions first appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, event := range trace {
		for _, expectedAction := range assertion.Actions {
			if matchesStep(event, assertion, expectedAction) && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesStep(event, assertion, assertion.Action) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks a host's materialized table. The first row
// matching Where must contain Expect (subset semantics); with Absent, no row
// may match.
func assertFinalState(state map[string]HostState, assertion Assertion) error {
	hostState, ok := state[assertion.Host]
	if !ok {
		return fmt.Errorf("final_state: no state for host %q", assertion.Host)
	}
	rows := hostState[assertion.Table]

	for _, row := range rows {
		if !matchArgs(map[string]any(row), assertion.Where) {
			continue
		}
		if assertion.Absent {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("no %s.%s row where %v", assertion.Host, assertion.Table, assertion.Where),
				Actual:   fmt.Sprintf("found %v", map[string]any(row)),
			}
		}
		for key, expectedVal := range assertion.Expect {
			actualVal, exists := row[key]
			if !exists {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("%s.%s column %q", assertion.Host, assertion.Table, key),
					Actual:   fmt.Sprintf("no such column in %v", map[string]any(row)),
				}
			}
			if !valuesEqual(actualVal, expectedVal) {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("%s.%s %s = %v where %v", assertion.Host, assertion.Table, key, expectedVal, assertion.Where),
					Actual:   fmt.Sprintf("%v", actualVal),
				}
			}
		}
		return nil
	}

	if assertion.Absent {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("a %s.%s row where %v", assertion.Host, assertion.Table, assertion.Where),
		Actual:   fmt.Sprintf("%d rows, none matching", len(rows)),
	}
}

// matchArgs checks if actual contains all expected keys (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values for equality, treating every integer
// type as int64 so YAML ints match int64 state columns.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	if a, ok := toInt64(actual); ok {
		e, ok := toInt64(expected)
		return ok && a == e
	}

	return reflect.DeepEqual(actual, expected)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

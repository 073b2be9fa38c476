package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a multi-host sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend is the local store of every host: sqlite (default) or badger.
	Backend string `yaml:"backend,omitempty"`

	// Hosts names the participating hosts. The n-th host gets
	// testutil.HostID(n+1).
	Hosts []string `yaml:"hosts"`

	// Flow is executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one step run on one host.
type FlowStep struct {
	Host string         `yaml:"host"`
	Do   string         `yaml:"do"`
	Args map[string]any `yaml:"args,omitempty"`

	// Expect specifies the expected completion.
	// If nil, the step must succeed and its result is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected outcome: Success, Partial or Error.
	Case string `yaml:"case"`

	// Result contains expected result field values.
	// This is a subset match - only specified fields are validated.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a step appears in trace with args
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check an action appears exactly N times
	// - "final_state": Check a row of a host's table
	Type string `yaml:"type"`

	// Host restricts trace assertions to one host and names the host for
	// final_state.
	Host string `yaml:"host,omitempty"`

	// Action is the step action (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected step arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Table is history, alias, var or chains (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects rows (used by final_state). All fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values of the first selected row
	// (used by final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts that no row matches Where (used by final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Step actions.
const (
	ActionHistoryAdd    = "history_add"
	ActionHistoryDelete = "history_delete"
	ActionAliasSet      = "alias_set"
	ActionAliasDelete   = "alias_delete"
	ActionVarSet        = "var_set"
	ActionVarDelete     = "var_delete"
	ActionSync          = "sync"
)

var knownActions = []string{
	ActionHistoryAdd, ActionHistoryDelete,
	ActionAliasSet, ActionAliasDelete,
	ActionVarSet, ActionVarDelete,
	ActionSync,
}

// Materialized table names for final_state.
const (
	TableHistory = "history"
	TableAlias   = "alias"
	TableVar     = "var"
	TableChains  = "chains"
)

var knownTables = []string{TableHistory, TableAlias, TableVar, TableChains}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Backend {
	case "", "sqlite", "badger":
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	if len(s.Hosts) == 0 {
		return fmt.Errorf("hosts list is required and must be non-empty")
	}
	seen := map[string]bool{}
	for i, h := range s.Hosts {
		if h == "" {
			return fmt.Errorf("hosts[%d]: name is required", i)
		}
		if seen[h] {
			return fmt.Errorf("hosts[%d]: duplicate host %q", i, h)
		}
		seen[h] = true
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if !seen[step.Host] {
			return fmt.Errorf("flow[%d]: unknown host %q", i, step.Host)
		}
		if !slices.Contains(knownActions, step.Do) {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Do)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, seen); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, hosts map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Host != "" && !hosts[a.Host] {
		return fmt.Errorf("assertions[%d]: unknown host %q", index, a.Host)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Host == "" {
			return fmt.Errorf("assertions[%d]: host is required for final_state", index)
		}
		if !slices.Contains(knownTables, a.Table) {
			return fmt.Errorf("assertions[%d]: unknown table %q for final_state", index, a.Table)
		}
		if len(a.Expect) == 0 && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

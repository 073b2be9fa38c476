package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalScenario = `
name: minimal
description: "One host, one record"
hosts: [a]
flow:
  - host: a
    do: history_add
    args: { command: "ls" }
assertions:
  - type: trace_count
    action: history_add
    count: 1
`

func TestLoadScenario_Minimal(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, []string{"a"}, s.Hosts)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, ActionHistoryAdd, s.Flow[0].Do)
	assert.Equal(t, "ls", s.Flow[0].Args["command"])
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, 1, s.Assertions[0].Count)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, minimalScenario+"assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Hosts:       []string{"a", "b"},
			Flow:        []FlowStep{{Host: "a", Do: ActionSync}},
			Assertions:  []Assertion{{Type: AssertTraceCount, Action: ActionSync, Count: 1}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"no name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"no description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"bad backend", func(s *Scenario) { s.Backend = "postgres" }, "unknown backend"},
		{"no hosts", func(s *Scenario) { s.Hosts = nil }, "hosts list is required"},
		{"duplicate host", func(s *Scenario) { s.Hosts = []string{"a", "a"} }, "duplicate host"},
		{"no flow", func(s *Scenario) { s.Flow = nil }, "flow list is required"},
		{"unknown step host", func(s *Scenario) { s.Flow[0].Host = "z" }, "unknown host"},
		{"unknown action", func(s *Scenario) { s.Flow[0].Do = "reboot" }, "unknown action"},
		{"expect without case", func(s *Scenario) { s.Flow[0].Expect = &ExpectClause{} }, "case is required"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions[0].Type = "magic" }, "unknown assertion type"},
		{"final_state without host", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertFinalState, Table: TableAlias, Expect: map[string]any{"value": "x"}}
		}, "host is required"},
		{"final_state bad table", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertFinalState, Host: "a", Table: "users", Expect: map[string]any{"value": "x"}}
		}, "unknown table"},
		{"final_state without expect", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertFinalState, Host: "a", Table: TableAlias}
		}, "expect or absent"},
		{"final_state absent", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertFinalState, Host: "a", Table: TableAlias, Absent: true}
		}, ""},
		{"trace_order without actions", func(s *Scenario) {
			s.Assertions[0] = Assertion{Type: AssertTraceOrder}
		}, "actions list is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_RepositoryScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("../../testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "two_hosts_converge")
	assert.IsIncreasing(t, names)
}

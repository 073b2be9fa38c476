package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/shellsync/internal/alias"
	"github.com/roach88/shellsync/internal/history"
	"github.com/roach88/shellsync/internal/record"
	"github.com/roach88/shellsync/internal/seal"
	"github.com/roach88/shellsync/internal/store"
	"github.com/roach88/shellsync/internal/syncer"
	"github.com/roach88/shellsync/internal/testutil"
	"github.com/roach88/shellsync/internal/vars"
)

// epoch is the first timestamp handed out by the scenario clock.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock, host ids and key.
type Harness struct {
	relay  store.Store
	hosts  map[string]*node
	names  map[record.HostID]string
	clock  *testutil.Clock
	key    seal.Key
	engine *seal.Engine
	logger *slog.Logger
	seq    int64
}

// node is one simulated machine.
type node struct {
	name    string
	id      record.HostID
	store   store.Store
	history *history.Store
	alias   *alias.Store
	vars    *vars.Store
	syncer  *syncer.Syncer
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh stores in a temporary directory and an
// in-memory relay.
//
// Execution flow:
// 1. Open one local store per host and the shared relay
// 2. Execute flow steps, checking expect clauses
// 3. Materialize every host's tables
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "shellsync-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(scenario, dir)
	if err != nil {
		return nil, err
	}
	defer h.close()

	ctx := context.Background()
	result := NewResult()

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, name := range scenario.Hosts {
		state, err := h.materialize(ctx, h.hosts[name])
		if err != nil {
			return nil, fmt.Errorf("failed to materialize %s: %w", name, err)
		}
		result.State[name] = state
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(scenario *Scenario, dir string) (*Harness, error) {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	relay, err := store.OpenBadger(store.BadgerConfig{InMemory: true, Logger: quiet})
	if err != nil {
		return nil, fmt.Errorf("failed to open relay: %w", err)
	}

	h := &Harness{
		relay:  relay,
		hosts:  map[string]*node{},
		names:  map[record.HostID]string{},
		clock:  testutil.NewClock(epoch, time.Second),
		engine: seal.NewEngine(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for i := range h.key {
		h.key[i] = byte(i + 1)
	}

	for i, name := range scenario.Hosts {
		id := testutil.HostID(i + 1)
		s, err := store.Open(store.Options{
			Backend: scenario.Backend,
			Path:    filepath.Join(dir, name),
			Badger:  store.BadgerConfig{Logger: quiet},
		})
		if err != nil {
			h.close()
			return nil, fmt.Errorf("failed to open store for %s: %w", name, err)
		}

		app := record.NewAppender(id, s)
		app.Now = h.clock.Now

		h.hosts[name] = &node{
			name:    name,
			id:      id,
			store:   s,
			history: history.NewStore(s, app, h.engine),
			alias:   alias.NewStore(s, app, h.engine),
			vars:    vars.NewStore(s, app, h.engine),
			syncer:  syncer.New(s, syncer.NewStoreRemote(relay), syncer.WithLogger(h.logger)),
		}
		h.names[id] = name
	}

	return h, nil
}

func (h *Harness) close() {
	for _, n := range h.hosts {
		n.store.Close()
	}
	h.relay.Close()
}

// executeFlow runs all flow steps in order.
// A step whose outcome differs from its expect clause fails the result but
// does not stop the flow.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		n := h.hosts[step.Host]

		h.seq++
		outcome, res, err := h.execute(ctx, n, step)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		result.AddTrace(TraceEvent{
			Seq:    h.seq,
			Host:   step.Host,
			Action: step.Do,
			Args:   step.Args,
			Case:   outcome,
			Result: res,
		})

		expected := CaseSuccess
		if step.Expect != nil {
			expected = step.Expect.Case
		}
		if outcome != expected {
			result.AddError(fmt.Sprintf("flow[%d] %s on %s: expected case %s, got %s (%v)",
				i, step.Do, step.Host, expected, outcome, res))
			continue
		}
		if step.Expect != nil && !matchArgs(res, step.Expect.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s on %s: expected result %v, got %v",
				i, step.Do, step.Host, step.Expect.Result, res))
		}
	}
	return nil
}

// execute runs one step. Domain failures become case Error with the message
// in the result; only harness faults are returned as errors.
func (h *Harness) execute(ctx context.Context, n *node, step FlowStep) (string, map[string]any, error) {
	var (
		r   record.Record
		err error
	)

	switch step.Do {
	case ActionHistoryAdd:
		e := history.NewEntry(h.clock.Now(), stringArg(step.Args, "command", ""),
			stringArg(step.Args, "cwd", "/"), n.name+"-session", n.name)
		e.Exit = int64(intArg(step.Args, "exit", 0))
		r, err = n.history.Add(ctx, e, h.key)

	case ActionHistoryDelete:
		var id string
		id, err = h.findEntry(ctx, n, stringArg(step.Args, "command", ""))
		if err == nil {
			r, err = n.history.Delete(ctx, id, h.key)
		}

	case ActionAliasSet:
		r, err = n.alias.Set(ctx, stringArg(step.Args, "name", ""), stringArg(step.Args, "value", ""), h.key)

	case ActionAliasDelete:
		r, err = n.alias.Delete(ctx, stringArg(step.Args, "name", ""), h.key)

	case ActionVarSet:
		r, err = n.vars.Set(ctx, stringArg(step.Args, "name", ""), stringArg(step.Args, "value", ""),
			boolArg(step.Args, "export"), h.key)

	case ActionVarDelete:
		r, err = n.vars.Delete(ctx, stringArg(step.Args, "name", ""), h.key)

	case ActionSync:
		return h.sync(ctx, n)

	default:
		return "", nil, fmt.Errorf("unknown action %q", step.Do)
	}

	if err != nil {
		return CaseError, map[string]any{"error": err.Error()}, nil
	}
	return CaseSuccess, map[string]any{"tag": string(r.Tag), "idx": r.Idx}, nil
}

func (h *Harness) sync(ctx context.Context, n *node) (string, map[string]any, error) {
	report, err := n.syncer.Run(ctx)
	if err != nil {
		return CaseError, map[string]any{"error": err.Error()}, nil
	}

	failed := report.Failed()
	res := map[string]any{
		"uploaded":   report.Uploaded,
		"downloaded": report.Downloaded,
		"failed":     len(failed),
	}
	if len(failed) > 0 {
		return CasePartial, res, nil
	}
	return CaseSuccess, res, nil
}

// findEntry returns the id of the oldest visible history entry with command.
func (h *Harness) findEntry(ctx context.Context, n *node, command string) (string, error) {
	entries, err := n.history.Build(ctx, h.key)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Command == command {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("no history entry with command %q", command)
}

// materialize builds every table of a host from its local store.
func (h *Harness) materialize(ctx context.Context, n *node) (HostState, error) {
	state := HostState{}

	entries, err := n.history.Build(ctx, h.key)
	if err != nil {
		return nil, err
	}
	rows := []Row{}
	for _, e := range entries {
		rows = append(rows, Row{
			"command":  e.Command,
			"cwd":      e.Cwd,
			"exit":     e.Exit,
			"hostname": e.Hostname,
		})
	}
	state[TableHistory] = rows

	aliases, err := n.alias.Build(ctx, h.key)
	if err != nil {
		return nil, err
	}
	rows = []Row{}
	for _, name := range sortedKeys(aliases) {
		rows = append(rows, Row{"name": name, "value": aliases[name]})
	}
	state[TableAlias] = rows

	vs, err := n.vars.Build(ctx, h.key)
	if err != nil {
		return nil, err
	}
	rows = []Row{}
	for _, name := range sortedKeys(vs) {
		v := vs[name]
		rows = append(rows, Row{"name": v.Name, "value": v.Value, "export": v.Export})
	}
	state[TableVar] = rows

	status, err := n.store.Status(ctx)
	if err != nil {
		return nil, err
	}
	rows = []Row{}
	for _, k := range status.Chains() {
		tip, _ := status.Get(k.Host, k.Tag)
		rows = append(rows, Row{"host": h.hostName(k.Host), "tag": string(k.Tag), "idx": tip.Idx})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i]["host"].(string), rows[j]["host"].(string)
		if a != b {
			return a < b
		}
		return rows[i]["tag"].(string) < rows[j]["tag"].(string)
	})
	state[TableChains] = rows

	return state, nil
}

func (h *Harness) hostName(id record.HostID) string {
	if name, ok := h.names[id]; ok {
		return name
	}
	return string(id)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(int); ok {
		return v
	}
	return def
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// Package harness runs multi-host sync scenarios as executable contract tests.
//
// A scenario names a set of hosts sharing one account key and one relay, a
// flow of steps executed on those hosts, and assertions on the resulting
// trace and on every host's materialized state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	backend: sqlite            # local store for every host: sqlite | badger
//	hosts: [laptop, desktop]
//	flow:
//	  - host: laptop
//	    do: history_add
//	    args: { command: "make test" }
//	    expect:
//	      case: Success
//	      result: { tag: history, idx: 0 }
//	  - host: laptop
//	    do: sync
//	    expect:
//	      case: Success
//	      result: { uploaded: 1 }
//	assertions:
//	  - type: trace_count
//	    action: sync
//	    count: 1
//	  - type: final_state
//	    host: desktop
//	    table: history
//	    where: { command: "make test" }
//	    expect: { hostname: laptop }
//
// # Steps
//
//   - history_add: command, cwd, exit
//   - history_delete: command (deletes the oldest visible entry with that command)
//   - alias_set: name, value
//   - alias_delete: name
//   - var_set: name, value, export
//   - var_delete: name
//   - sync: one sync run against the shared relay
//
// Every step completes with case Success or Error. A sync in which some
// chains failed completes with case Partial.
//
// # Assertion Types
//
//   - trace_contains: a step with the given action (and host, args) ran
//   - trace_order: actions first ran in the given order
//   - trace_count: an action (optionally on one host) ran exactly N times
//   - final_state: a row of a host's table (history, alias, var, chains)
//     matching where has the expected values, or no row matches when absent
//
// # Deterministic Testing
//
// Host ids come from testutil.HostID, record timestamps from a shared
// testutil.Clock, and the account key is fixed. Snapshots contain host
// names, tags, indexes and decrypted values, never ids or ciphertext, so
// golden files are stable across runs.
package harness

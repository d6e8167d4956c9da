// Package harness runs YAML conformance scenarios against the executor.
//
// # Scenario Format
//
//	name: verona_accounts
//	description: "What this scenario validates"
//	now: 2026-03-18T15:30:45Z   # optional, frozen clock for relative dates
//	demo: true                  # seed the built-in demo data set
//	fixtures:                   # extra rows, table -> rows
//	  products:
//	    - {id: p9, name: Tonic, category: drinks}
//	steps:
//	  - name: own accounts in Verona
//	    caller: u1
//	    plan:
//	      tables: [accounts]
//	      filters:
//	        - {field: accounts.city, operator: eq, value: verona}
//	    expect:
//	      success: true
//	      ids: [a1, a2]
//
// # Expectations
//
// Every expect field is optional: success, code, error_contains, row_count,
// ids (ordered primary ids), rows (ordered subset match), aggregated (exact)
// and warnings (count).
//
// # Deterministic Testing
//
// Each scenario runs in a fresh SQLite database with a frozen clock
// (testutil.FixedClock) and the scenario name as execution ID, so the
// snapshot compared by RunWithGolden is identical across runs.
package harness

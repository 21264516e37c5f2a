// Package harness runs store scenarios and snapshots the resulting state.
//
// A scenario is a YAML file listing update, delete and concept cache
// steps. The harness wires the real orchestrator, store, scheduler and
// concept cache manager over a fresh SQLite database, executes the steps
// in order, and captures a Snapshot: the outcome of every step plus the
// final facts, fingerprint tables, concept caches, queued jobs and
// published events.
//
// # Scenario Format
//
//	name: redirect_moves_references
//	description: "A redirect retargets page values"
//	config:
//	  enable_update_jobs: true
//	steps:
//	  - update:
//	      subject: Hamburg
//	      facts:
//	        - property: Twin town
//	          values: [{ref: Muenchen}]
//	  - update:
//	      subject: Muenchen
//	      facts:
//	        - property: _REDI
//	          values: [{ref: Munich}]
//	  - concepts: {action: create}
//	  - advance: 90m
//	  - delete: Hamburg
//
// Update steps take a fact document (see package factfile). Every
// document of the scenario also answers page-info and edit-protection
// lookups for its subject.
//
// # Deterministic Testing
//
// Runs use a fake wall clock starting at testutil.Epoch that only moves
// on advance steps, and the concept cache manager never waits. Job IDs
// are left out of snapshots. Two runs of the same scenario produce
// byte-identical snapshots, which RunWithGolden compares against
// testdata/golden/{name}.golden with goldie.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness

// Package store provides SQLite-backed durable storage for semantic data.
//
// Facts about a subject are spread over one property table per value
// family (see package tables). Every subject, property and page value is
// mapped to an integer ID in smw_object_ids.
//
// # Invariants
//
// Fingerprints:
//   - smw_fingerprints holds, per subject, a table name → SHA-256 map of
//     the rows the subject owns in each property table
//   - a subject has a fingerprint iff it has at least one row
//   - UpdateData rewrites only the tables whose hash changed
//
// Identity:
//   - lookups used for deletion never allocate IDs
//   - on delete the ID is freed according to the IDRetention policy
//
// Concepts:
//   - the concept table row carries the Cache Record; NULL cache_date
//     means empty
//   - replacing a concept description resets its cache
//
// Deterministic reads:
//   - every list is ordered by ID or by key, and empty results are empty
//     slices rather than nil
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Every driver failure is returned marked with errors.ErrStorageUnavailable.
package store

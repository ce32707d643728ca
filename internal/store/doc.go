// Package store provides SQLite-backed storage for versioned objects.
//
// Every commit appends one revision to the revision log. Objects are never
// updated in place: a change closes the live version (sets its rev_max to the
// previous revision) and inserts a new one. Reading at revision r returns the
// versions with rev_min <= r <= rev_max.
//
// # Conventions
//
//   - Attribute names are the JSON keys of the attrs and flex columns,
//     unchanged. AttrPath gives the json_extract path of one.
//   - All extent queries are ordered: ORDER BY id ASC COLLATE BINARY, branch ASC.
//   - Identifiers of created objects are UUIDv7 strings unless an IDGenerator
//     is configured.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// A Snapshot adapts the store to the eval.Resolver and eval.Extent interfaces.
package store

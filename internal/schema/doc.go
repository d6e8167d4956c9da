// Package schema provides the static registry of tables, fields, filter
// operators and aggregation functions accepted by the query engine.
//
// The registry is declared in CUE (registry.cue, embedded) and unified with
// the #Registry definition (definitions.cue) when loaded. After Load returns,
// a Registry is never mutated and is safe for unsynchronized concurrent reads.
//
// Encrypted columns: a field whose name ends in one of the encrypted-data
// suffixes (_enc, _iv, _tag, _bi) is never a valid field, even when it
// appears in a table's field list. Sensitive values are stored encrypted and
// the engine must never read or filter on them.
package schema

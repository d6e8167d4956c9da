// Package engine executes validated query plans against a store.Backend.
//
// An execution runs sequentially through a fixed pipeline:
//
//  1. Validate the plan against the schema registry.
//  2. Resolve in / not_in subqueries depth-first, each one a full nested
//     execution with its own validation, security scope and timeout.
//  3. Inject the tenant owner filter for every tenant-scoped table.
//  4. Translate filters, partitioned between the primary table and joins.
//  5. Issue one store query under a timeout.
//  6. Aggregate, when the plan declares an aggregation.
//
// CRITICAL: The caller's plan is never mutated. The executor works on a
// deep copy, and nothing reaches the store without the owner filter bound
// to the calling principal.
//
// Executions are single-attempt. Any fatal error aborts the whole
// invocation and yields a failed QueryResult with a typed error code; there
// are no partial results.
//
// The Executor holds no mutable state, so independent executions may run
// in parallel.
package engine

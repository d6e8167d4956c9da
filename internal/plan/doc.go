// Package plan defines the Query Plan: a structured, read-only query over the
// registered schema (tables, filters, joins, an optional aggregation, sort and
// limit), together with its validator.
//
// Plans arrive from an upstream translator as JSON or YAML. Decoding maps every
// filter value onto the closed Value union:
//
//	String | Number | Bool   scalar values (Scalar)
//	Array                    list of scalars, for in / not_in
//	Subquery                 nested plan, for in / not_in
//
// Value is a sealed interface. Consumers switch over it exhaustively:
//
//	switch v := f.Value.(type) {
//	case plan.Scalar:
//	case plan.Array:
//	case plan.Subquery:
//	}
//
// A QueryPlan is never mutated by the engine. Executors work on Clone().
package plan

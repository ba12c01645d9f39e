// Package queryir is the back-end neutral description of the tabular
// operations tabbench benchmarks.
//
// A Query names WHAT a step computes; each back end decides HOW:
//
//	[plan step params] → [Query IR] → [frame: in-memory columnar]
//	                                → [sqlgen + sqlengine: SQLite]
//
// Query is a sealed interface (marker method pattern), so back ends can use
// exhaustive type switches. Node kinds:
//   - Dedupe: one row per key, the row with the smallest ordering value
//   - Mutate: add or replace an arithmetic column
//   - GroupAggregate: group by keys and reduce columns
//   - Melt / Cast: reshape wide to long and long to wide
//   - Join: inner or left equi-join of two tables
//   - Append: row-bind two tables
//
// # Null semantics
//
// All back ends must agree on missing values, so the rules are fixed here
// and follow SQL: Null keys never match in joins but group together in
// Dedupe and GroupAggregate, aggregates skip Nulls, arithmetic with a Null
// operand or a zero divisor yields Null, and Nulls sort first.
//
// # Output schema
//
// Schema computes the output columns from the input schemas without
// touching data. Cast is the exception: its pivot columns depend on the
// distinct values of the variable column, so Schema returns only the id
// columns.
package queryir

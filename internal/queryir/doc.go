// Package queryir provides an abstract filter representation for trace
// queries.
//
// Filters describe which tick events a caller wants without committing to a
// storage backend. The CLI builds filters from flags, the harness builds
// them from scenario assertions, and internal/querysql compiles them to
// parameterized SQL for the SQLite store:
//
//	[trace flags / assertions] → [Filter] → [SQL WHERE clause]
//
// SEALED INTERFACE:
//
// Filter is a sealed interface using the marker method pattern. Only types
// in this package implement it, which enables exhaustive type switches in
// the SQL compiler and keeps the filterable surface auditable in one place.
//
// FILTERABLE COLUMNS:
//
// ValidateFilter whitelists the columns a filter may reference:
//
//	event, node, node_kind, status, tick
//
// The whitelist exists because column names end up inside SQL text. Values
// never do; they are always bound as parameters by the compiler.
//
// The fragment deliberately stops at Equals and And. Traces are small and
// every recorded field is an exact enum or name, so ranges, OR, and
// negation have not been needed.
package queryir

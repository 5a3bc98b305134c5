package queryir

// Filter represents a condition over stored tick events.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Filter types:
//   - Equals: column = literal value
//   - And: all filters must hold
//
// A nil Filter means "match everything".
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// Equals represents a column-equals-literal filter.
//
// Semantics:
//
//	<field> = <value>
//
// Example:
//
//	Equals{Field: "node", Value: "sweep"}
//
// compiles to:
//
//	node = ?    with params ["sweep"]
//
// Field must be one of the whitelisted trace columns (see ValidateFilter).
// Value must be a string, bool, or integer - the types that actually occur
// in tick event columns. The value is always bound as a SQL parameter,
// never interpolated.
type Equals struct {
	Field string // Whitelisted column name
	Value any    // string, bool, int, or int64
}

func (Equals) filterNode() {}

// And represents a conjunction of filters (all must hold).
//
// Semantics:
//
//	<filter1> AND <filter2> AND ... AND <filterN>
//
// An empty Filters slice is vacuously true and compiles to "1 = 1".
// Nested And filters are allowed and flatten naturally in SQL.
type And struct {
	Filters []Filter
}

func (And) filterNode() {}

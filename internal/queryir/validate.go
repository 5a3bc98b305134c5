package queryir

import "fmt"

// filterableColumns is the set of tick event columns a filter may reference.
//
// Column names are spliced into SQL text by the compiler, so this whitelist
// is the injection boundary: anything outside it is rejected before any SQL
// is built. run_token is deliberately absent - the store scopes every trace
// query to a run itself.
var filterableColumns = map[string]bool{
	"event":     true,
	"node":      true,
	"node_kind": true,
	"status":    true,
	"tick":      true,
}

// FilterableColumns returns the whitelisted column names in sorted order.
// Used by the CLI for error messages.
func FilterableColumns() []string {
	return []string{"event", "node", "node_kind", "status", "tick"}
}

// ValidateFilter checks that a filter only references whitelisted columns
// and carries representable values.
//
// A nil filter is valid (match everything). Validation recurses through And
// conjunctions and fails on the first problem; filters are small enough
// that collect-all reporting would not pay for itself.
func ValidateFilter(f Filter) error {
	if f == nil {
		return nil
	}

	switch filter := f.(type) {
	case Equals:
		return validateEquals(filter)
	case *Equals:
		return validateEquals(*filter)
	case And:
		return validateAnd(filter)
	case *And:
		return validateAnd(*filter)
	default:
		return fmt.Errorf("unsupported filter type: %T", f)
	}
}

func validateEquals(eq Equals) error {
	if !filterableColumns[eq.Field] {
		return fmt.Errorf("column %q is not filterable (allowed: event, node, node_kind, status, tick)", eq.Field)
	}

	switch eq.Value.(type) {
	case string, bool, int, int64:
		return nil
	case nil:
		return fmt.Errorf("column %q compared to nil", eq.Field)
	default:
		return fmt.Errorf("column %q compared to unsupported value type %T", eq.Field, eq.Value)
	}
}

func validateAnd(and And) error {
	for _, sub := range and.Filters {
		if sub == nil {
			return fmt.Errorf("nil filter inside And")
		}
		if err := ValidateFilter(sub); err != nil {
			return err
		}
	}
	return nil
}

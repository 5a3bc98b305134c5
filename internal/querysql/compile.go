// Package querysql compiles trace filters to parameterized SQL for SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/arbor/internal/queryir"
)

// CompileFilter converts a filter to a SQL WHERE fragment plus parameters.
//
// The fragment contains column names and placeholders only; every value is
// returned in params for binding. Callers AND the fragment into their own
// query, e.g.
//
//	where, params, _ := CompileFilter(f)
//	rows, _ := db.Query("SELECT ... WHERE run_token = ? AND "+where, append([]any{token}, params...)...)
//
// A nil filter compiles to "1 = 1" so callers never special-case it.
//
// CRITICAL: Values are NEVER interpolated - always ? placeholders. Column
// names are interpolated, which is why CompileFilter validates the filter
// against the queryir whitelist before building any SQL.
func CompileFilter(f queryir.Filter) (string, []any, error) {
	if err := queryir.ValidateFilter(f); err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	if f == nil {
		return "1 = 1", nil, nil
	}

	return compileFilter(f)
}

// compileFilter recursively compiles a validated filter node.
func compileFilter(f queryir.Filter) (string, []any, error) {
	switch filter := f.(type) {
	case queryir.Equals:
		return compileEquals(filter)
	case *queryir.Equals:
		return compileEquals(*filter)
	case queryir.And:
		return compileAnd(filter)
	case *queryir.And:
		return compileAnd(*filter)
	default:
		// Unreachable after validation; the sealed interface has no other
		// implementations.
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

// compileEquals compiles an Equals filter to "column = ?".
func compileEquals(eq queryir.Equals) (string, []any, error) {
	return fmt.Sprintf("%s = ?", eq.Field), []any{eq.Value}, nil
}

// compileAnd compiles an And filter to a parenthesized conjunction.
// An empty conjunction is vacuously true.
func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Filters) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var allParams []any

	for _, sub := range and.Filters {
		sql, params, err := compileFilter(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		allParams = append(allParams, params...)
	}

	return "(" + strings.Join(parts, " AND ") + ")", allParams, nil
}

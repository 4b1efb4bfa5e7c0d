package schema

import "strings"

// FirstMatch returns the first raw column, in its original positional order,
// whose normalized name contains any of the group's alias fragments as a
// substring. Fragments are tried in their declared priority order within
// each column.
//
// This contract is deliberately order-dependent and deterministic, not
// fuzzy: when two columns both match a concept the positionally earlier one
// wins, and a single column may bind to more than one concept since every
// concept resolves independently.
//
// Columns are expected pre-normalized (lower-cased, trimmed) as produced by
// record.Columns; the fragments are normalized here.
func FirstMatch(columns []string, group AliasGroup) (string, bool) {
	for _, col := range columns {
		for _, alias := range group.Aliases {
			if strings.Contains(col, strings.ToLower(alias)) {
				return col, true
			}
		}
	}
	return "", false
}

// Resolve maps each group in the table to its first matching column.
// Concepts with no match are absent from the result.
func Resolve(columns []string, table []AliasGroup) map[string]string {
	bound := make(map[string]string, len(table))
	for _, g := range table {
		if col, ok := FirstMatch(columns, g); ok {
			bound[g.Concept] = col
		}
	}
	return bound
}

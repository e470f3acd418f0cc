package core

// normalize.go maps header columns to logical fields and cleans raw cell
// values into record fields. Matching against the required column names is
// case-insensitive and trimmed but otherwise exact; extra columns are
// ignored.

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// requiredColumns are the logical column names the sheet must provide.
var requiredColumns = []string{"name", "last name", "email", "groups"}

// buildHeaderMap resolves header strings to column indices. It returns a
// SchemaError enumerating every missing required column.
func buildHeaderMap(headers []string) (map[string]int, error) {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return idx, nil
}

// cellAt returns the cell at the mapped column, or empty when the row is
// shorter than the header.
func cellAt(row []string, idx map[string]int, column string) string {
	pos, ok := idx[column]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// NormalizeName trims, collapses internal whitespace runs and title-cases
// each word, Unicode-aware.
func NormalizeName(value string) string {
	words := strings.Fields(value)
	if len(words) == 0 {
		return ""
	}
	collapsed := strings.ToLower(strings.Join(words, " "))
	return cases.Title(language.Und).String(collapsed)
}

// NormalizeEmail trims, removes internal spaces and lower-cases.
func NormalizeEmail(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, " ", "")
	return strings.ToLower(value)
}

// SplitGroupCell splits a group cell on runs of ';' or ',', trims each
// token and drops empty ones.
func SplitGroupCell(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == ','
	})

	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// dedupeIDs removes duplicate ids while preserving first-seen order.
func dedupeIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

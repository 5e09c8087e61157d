// Package setclause builds the SET clause of a parameterized UPDATE statement
// for a partial update: only the supplied fields are assigned, each bound to a
// `$n` placeholder whose value is returned alongside the SQL fragment.
//
// Column names are quoted but never escaped. Field names and translations must
// come from a trusted schema, never directly from end users.
package setclause

import (
	"errors"
	"strconv"
	"strings"

	"github.com/turbolytics/patcher/pkg/apperr"
)

var (
	// ErrNoData is returned (classified as a bad request) when there is
	// nothing to update.
	ErrNoData = errors.New("No data") //nolint:staticcheck // message is part of the API response
)

// Translation maps application field names to database column names. Fields
// without an entry use their own name as the column.
type Translation map[string]string

// Column resolves the column name for field.
func (t Translation) Column(field string) string {
	if col, ok := t[field]; ok {
		return col
	}
	return field
}

// Result is a SET clause and the bind values for its placeholders. Values[i]
// binds to placeholder $i+1.
type Result struct {
	SetClause string `json:"set_clause"`
	Values    []any  `json:"values"`
}

// Placeholders returns the number of placeholders in the clause.
func (r Result) Placeholders() int {
	return len(r.Values)
}

// NextPlaceholder returns the first free placeholder index, for callers that
// append WHERE parameters after the clause.
func (r Result) NextPlaceholder() int {
	return len(r.Values) + 1
}

// Build renders fields as `"column"=$n` assignments joined by ", ", numbered
// from 1 in field order. Duplicate names in fields are not collapsed.
func Build(fields Fields, translation Translation) (Result, error) {
	if len(fields) == 0 {
		return Result{}, apperr.BadRequest(ErrNoData)
	}

	cols := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = `"` + translation.Column(f.Name) + `"=$` + strconv.Itoa(i+1)
		values[i] = f.Value
	}

	return Result{
		SetClause: strings.Join(cols, ", "),
		Values:    values,
	}, nil
}

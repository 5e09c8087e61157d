package update

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/turbolytics/patcher/internal/config"
	"github.com/turbolytics/patcher/pkg/apperr"
	"github.com/turbolytics/patcher/pkg/setclause"
)

var (
	ErrUnknownField = errors.New("unknown field")
)

// Statement is an UPDATE of a single row identified by KeyColumn = Key.
type Statement struct {
	Table     string
	KeyColumn string
	Key       any
	Returning []string
}

func quote(ident string) string {
	return `"` + ident + `"`
}

// SQL splices the clause into the full statement. The key is bound to the
// placeholder after the clause's own placeholders and appended to its values.
func (s Statement) SQL(r setclause.Result) (string, []any) {
	returning := "*"
	if len(s.Returning) > 0 {
		cols := make([]string, len(s.Returning))
		for i, c := range s.Returning {
			cols[i] = quote(c)
		}
		returning = strings.Join(cols, ", ")
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(quote(s.Table))
	b.WriteString(" SET ")
	b.WriteString(r.SetClause)
	b.WriteString(" WHERE ")
	b.WriteString(quote(s.KeyColumn))
	b.WriteString(" = $")
	b.WriteString(strconv.Itoa(r.NextPlaceholder()))
	b.WriteString(" RETURNING ")
	b.WriteString(returning)

	args := make([]any, 0, len(r.Values)+1)
	args = append(args, r.Values...)
	args = append(args, s.Key)

	return b.String(), args
}

// Render validates fields against the resource and renders the UPDATE for
// the row identified by key.
func Render(res config.Resource, key any, fields setclause.Fields) (string, []any, error) {
	for _, f := range fields {
		if !res.Allows(f.Name) {
			return "", nil, apperr.BadRequest(fmt.Errorf("%w: %s", ErrUnknownField, f.Name))
		}
	}

	clause, err := setclause.Build(fields, res.Translation())
	if err != nil {
		return "", nil, err
	}

	stmt := Statement{
		Table:     res.Table,
		KeyColumn: res.Key,
		Key:       key,
		Returning: res.Returning,
	}
	query, args := stmt.SQL(clause)
	return query, args, nil
}

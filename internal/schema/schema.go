// Package schema derives resource definitions from CREATE TABLE statements.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/xwb1989/sqlparser"

	"github.com/turbolytics/patcher/internal/config"
)

var (
	ErrNotCreateTable = errors.New("statement is not a CREATE TABLE")
	ErrNoColumns      = errors.New("table has no columns")
	ErrFieldCollision = errors.New("field name matches another column")
)

// CamelCase converts a snake_case column name to a camelCase field name.
func CamelCase(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '_' {
			// leading underscores are kept
			if b.Len() == 0 {
				b.WriteRune(r)
				continue
			}
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func columnIsPrimary(col *sqlparser.ColumnDefinition) bool {
	buf := sqlparser.NewTrackedBuffer(nil)
	col.Format(buf)
	return strings.Contains(strings.ToLower(buf.String()), "primary key")
}

func primaryKey(ts *sqlparser.TableSpec) string {
	for _, idx := range ts.Indexes {
		if idx.Info.Primary && len(idx.Columns) > 0 {
			return idx.Columns[0].Column.String()
		}
	}
	for _, col := range ts.Columns {
		if columnIsPrimary(col) {
			return col.Name.String()
		}
	}
	return ts.Columns[0].Name.String()
}

// ResourceFromDDL parses a CREATE TABLE statement into a resource. The key is
// the first primary key column, or the first column when there is none. The
// key column is returned but not updatable.
func ResourceFromDDL(ddl string) (config.Resource, error) {
	stmt, err := sqlparser.Parse(ddl)
	if err != nil {
		return config.Resource{}, fmt.Errorf("parsing ddl: %w", err)
	}

	create, ok := stmt.(*sqlparser.DDL)
	if !ok || create.Action != sqlparser.CreateStr || create.TableSpec == nil {
		return config.Resource{}, ErrNotCreateTable
	}

	if len(create.TableSpec.Columns) == 0 {
		return config.Resource{}, ErrNoColumns
	}

	columns := make([]string, len(create.TableSpec.Columns))
	for i, col := range create.TableSpec.Columns {
		columns[i] = col.Name.String()
	}

	table := create.NewName.Name.String()
	return ResourceFromColumns(table, columns, primaryKey(create.TableSpec))
}

// ResourceFromColumns builds a resource for table. Columns whose camelCase
// form differs get a translation; the rest are listed as plain fields. A
// translated field that is also the name of another column is an error, since
// that column could not be addressed.
func ResourceFromColumns(table string, columns []string, key string) (config.Resource, error) {
	r := config.Resource{
		Name:  table,
		Table: table,
		Key:   key,
	}
	if r.Key == "" && len(columns) > 0 {
		r.Key = columns[0]
	}

	names := make(map[string]bool, len(columns))
	for _, name := range columns {
		names[name] = true
	}

	for _, name := range columns {
		r.Returning = append(r.Returning, name)

		// the key identifies the row and is not updatable
		if name == r.Key {
			continue
		}

		field := CamelCase(name)
		if field == name {
			r.Fields = append(r.Fields, name)
			continue
		}
		if _, dup := r.Columns[field]; dup || names[field] {
			return config.Resource{}, fmt.Errorf("%w: %s from %s", ErrFieldCollision, field, name)
		}
		if r.Columns == nil {
			r.Columns = make(map[string]string)
		}
		r.Columns[field] = name
	}

	return r, nil
}

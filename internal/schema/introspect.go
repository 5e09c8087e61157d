package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/turbolytics/patcher/internal/config"
)

const columnsQuery = `
SELECT column_name::text
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const primaryKeyQuery = `
SELECT kcu.column_name::text
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.constraint_type = 'PRIMARY KEY'
  AND tc.table_schema = $1
  AND tc.table_name = $2
ORDER BY kcu.ordinal_position`

// Querier is satisfied by *pgx.Conn and *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Introspect builds a resource for an existing table from information_schema.
func Introspect(ctx context.Context, q Querier, tableSchema, table string) (config.Resource, error) {
	columns, err := queryStrings(ctx, q, columnsQuery, tableSchema, table)
	if err != nil {
		return config.Resource{}, fmt.Errorf("listing columns of %s.%s: %w", tableSchema, table, err)
	}
	if len(columns) == 0 {
		return config.Resource{}, fmt.Errorf("%w: %s.%s", ErrNoColumns, tableSchema, table)
	}

	keys, err := queryStrings(ctx, q, primaryKeyQuery, tableSchema, table)
	if err != nil {
		return config.Resource{}, fmt.Errorf("finding primary key of %s.%s: %w", tableSchema, table, err)
	}

	var key string
	if len(keys) > 0 {
		key = keys[0]
	}

	return ResourceFromColumns(table, columns, key)
}

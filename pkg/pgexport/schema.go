package pgexport

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v4"
)

// DefaultSchema is the postgres schema tables are exported from
const DefaultSchema = "public"

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Table is a source table and the columns that order its export
type Table struct {
	Name        string
	PrimaryKeys []string
}

// SyncTables checks that every table in names exists in schema and fetches
// its primary key columns. Tables are returned in the order of names.
func SyncTables(ctx context.Context, q Querier, schema string, names []string) ([]Table, error) {
	existing, err := syncTableNames(ctx, q, schema)
	if err != nil {
		return nil, err
	}
	missing := make([]string, 0)
	for _, n := range names {
		if _, ok := existing[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("not all expected tables found in schema %s. missing: %v", schema, missing)
	}

	tables := make([]Table, 0, len(names))
	for _, n := range names {
		pks, err := syncPrimaryKeys(ctx, q, pgx.Identifier{schema, n}.Sanitize())
		if err != nil {
			return nil, fmt.Errorf("reading primary key of %s: %w", n, err)
		}
		tables = append(tables, Table{Name: n, PrimaryKeys: pks})
	}
	return tables, nil
}

func syncTableNames(ctx context.Context, q Querier, schema string) (map[string]struct{}, error) {
	rows, err := q.Query(ctx, querySelectTables, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}

func syncPrimaryKeys(ctx context.Context, q Querier, qualified string) ([]string, error) {
	rows, err := q.Query(ctx, querySelectPrimaryKeys, qualified)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pks := make([]string, 0)
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		pks = append(pks, col)
	}
	return pks, rows.Err()
}

package extractors

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
)

// pgDialect implements Dialect using information_schema queries.
type pgDialect struct{}

const (
	pgColumnsQuery = `
        SELECT column_name,
               CASE WHEN data_type IN ('USER-DEFINED', 'ARRAY') THEN udt_name ELSE data_type END,
               is_nullable = 'YES'
        FROM information_schema.columns
        WHERE table_schema = $1 AND table_name = $2
        ORDER BY ordinal_position`

	pgPrimaryKeyQuery = `
        SELECT kcu.column_name
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage kcu
          ON tc.constraint_name = kcu.constraint_name
         AND tc.table_schema = kcu.table_schema
         AND tc.table_name = kcu.table_name
        WHERE tc.constraint_type = 'PRIMARY KEY'
          AND tc.table_schema = $1 AND tc.table_name = $2
        ORDER BY kcu.ordinal_position`

	pgForeignKeySelect = `
        SELECT tc.constraint_name,
               tc.table_schema, tc.table_name, kcu.column_name,
               rkcu.table_schema, rkcu.table_name, rkcu.column_name
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage kcu
          ON tc.constraint_name = kcu.constraint_name
         AND tc.constraint_schema = kcu.constraint_schema
        JOIN information_schema.referential_constraints rc
          ON tc.constraint_name = rc.constraint_name
         AND tc.constraint_schema = rc.constraint_schema
        JOIN information_schema.key_column_usage rkcu
          ON rc.unique_constraint_name = rkcu.constraint_name
         AND rc.unique_constraint_schema = rkcu.constraint_schema
         AND kcu.position_in_unique_constraint = rkcu.ordinal_position
        WHERE tc.constraint_type = 'FOREIGN KEY'`

	pgForeignKeyOrder = `
        ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`

	pgOutgoingQuery = pgForeignKeySelect + `
          AND tc.table_schema = $1 AND tc.table_name = $2` + pgForeignKeyOrder

	pgIncomingQuery = pgForeignKeySelect + `
          AND rkcu.table_schema = $1 AND rkcu.table_name = $2` + pgForeignKeyOrder
)

// Introspect describes one PostgreSQL table.
func (pgDialect) Introspect(ctx context.Context, q db.Querier, schema, table string) (*introspect.TableSchema, error) {
	id := introspect.TableID{Schema: schema, Name: table}

	cols, err := db.QueryColumns(ctx, q, pgColumnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", id, err)
	}
	if len(cols) == 0 {
		return db.NewTableSchema(id, nil, nil, nil, nil)
	}

	pk, err := db.QueryStrings(ctx, q, pgPrimaryKeyQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", id, err)
	}
	outgoing, err := db.QueryForeignKeys(ctx, q, pgOutgoingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("outgoing foreign keys of %s: %w", id, err)
	}
	incoming, err := db.QueryForeignKeys(ctx, q, pgIncomingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("incoming foreign keys of %s: %w", id, err)
	}
	return db.NewTableSchema(id, cols, pk, outgoing, incoming)
}

func (pgDialect) DefaultSchema(ctx context.Context, q db.Querier) (string, error) {
	return db.QuerySingle(ctx, q, `SELECT current_schema()`)
}

func (pgDialect) QuoteIdent(name string) string {
	return db.QuoteIdentDouble(name)
}

func (pgDialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func init() {
	db.Register("postgres", pgDialect{})
	db.Register("postgresql", pgDialect{})
	db.Register("pgx", pgDialect{})
}

package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
)

// mysqlDialect implements Dialect for MySQL and MariaDB. A schema is a
// database.
type mysqlDialect struct{}

const (
	mysqlColumnsQuery = `
        SELECT column_name, data_type, is_nullable = 'YES'
        FROM information_schema.columns
        WHERE table_schema = ? AND table_name = ?
        ORDER BY ordinal_position`

	mysqlPrimaryKeyQuery = `
        SELECT k.column_name
        FROM information_schema.key_column_usage k
        JOIN information_schema.table_constraints tc
          ON k.constraint_name = tc.constraint_name
         AND k.table_schema = tc.table_schema
         AND k.table_name = tc.table_name
        WHERE tc.constraint_type = 'PRIMARY KEY'
          AND k.table_schema = ? AND k.table_name = ?
        ORDER BY k.ordinal_position`

	mysqlForeignKeySelect = `
        SELECT constraint_name,
               table_schema, table_name, column_name,
               referenced_table_schema, referenced_table_name, referenced_column_name
        FROM information_schema.key_column_usage
        WHERE referenced_table_name IS NOT NULL`

	mysqlForeignKeyOrder = `
        ORDER BY table_schema, table_name, constraint_name, ordinal_position`

	mysqlOutgoingQuery = mysqlForeignKeySelect + `
          AND table_schema = ? AND table_name = ?` + mysqlForeignKeyOrder

	mysqlIncomingQuery = mysqlForeignKeySelect + `
          AND referenced_table_schema = ? AND referenced_table_name = ?` + mysqlForeignKeyOrder
)

// Introspect describes one MySQL table.
func (mysqlDialect) Introspect(ctx context.Context, q db.Querier, schema, table string) (*introspect.TableSchema, error) {
	id := introspect.TableID{Schema: schema, Name: table}

	cols, err := db.QueryColumns(ctx, q, mysqlColumnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", id, err)
	}
	if len(cols) == 0 {
		return db.NewTableSchema(id, nil, nil, nil, nil)
	}

	pk, err := db.QueryStrings(ctx, q, mysqlPrimaryKeyQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", id, err)
	}
	outgoing, err := db.QueryForeignKeys(ctx, q, mysqlOutgoingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("outgoing foreign keys of %s: %w", id, err)
	}
	incoming, err := db.QueryForeignKeys(ctx, q, mysqlIncomingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("incoming foreign keys of %s: %w", id, err)
	}
	return db.NewTableSchema(id, cols, pk, outgoing, incoming)
}

func (mysqlDialect) DefaultSchema(ctx context.Context, q db.Querier) (string, error) {
	return db.QuerySingle(ctx, q, `SELECT DATABASE()`)
}

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) Placeholder(int) string { return "?" }

func init() {
	db.Register("mysql", mysqlDialect{})
	db.Register("mariadb", mysqlDialect{})
}

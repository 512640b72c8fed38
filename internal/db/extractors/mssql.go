package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
)

// mssqlDialect implements Dialect for Microsoft SQL Server.
type mssqlDialect struct{}

const (
	mssqlColumnsQuery = `
        SELECT COLUMN_NAME, DATA_TYPE, CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END
        FROM INFORMATION_SCHEMA.COLUMNS
        WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
        ORDER BY ORDINAL_POSITION`

	mssqlPrimaryKeyQuery = `
        SELECT k.COLUMN_NAME
        FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS t
        JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k ON t.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND t.TABLE_SCHEMA = k.TABLE_SCHEMA
        WHERE t.CONSTRAINT_TYPE = 'PRIMARY KEY'
          AND t.TABLE_SCHEMA = @p1 AND t.TABLE_NAME = @p2
        ORDER BY k.ORDINAL_POSITION`

	mssqlForeignKeySelect = `
        SELECT fk.name,
               SCHEMA_NAME(pt.schema_id), pt.name, c.name,
               SCHEMA_NAME(rt.schema_id), rt.name, rc.name
        FROM sys.foreign_keys fk
        JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
        JOIN sys.tables pt ON fkc.parent_object_id = pt.object_id
        JOIN sys.tables rt ON fkc.referenced_object_id = rt.object_id
        JOIN sys.columns c ON fkc.parent_object_id = c.object_id AND fkc.parent_column_id = c.column_id
        JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id AND fkc.referenced_column_id = rc.column_id`

	mssqlForeignKeyOrder = `
        ORDER BY SCHEMA_NAME(pt.schema_id), pt.name, fk.name, fkc.constraint_column_id`

	mssqlOutgoingQuery = mssqlForeignKeySelect + `
        WHERE SCHEMA_NAME(pt.schema_id) = @p1 AND pt.name = @p2` + mssqlForeignKeyOrder

	mssqlIncomingQuery = mssqlForeignKeySelect + `
        WHERE SCHEMA_NAME(rt.schema_id) = @p1 AND rt.name = @p2` + mssqlForeignKeyOrder
)

// Introspect describes one SQL Server table.
func (mssqlDialect) Introspect(ctx context.Context, q db.Querier, schema, table string) (*introspect.TableSchema, error) {
	id := introspect.TableID{Schema: schema, Name: table}

	cols, err := db.QueryColumns(ctx, q, mssqlColumnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", id, err)
	}
	if len(cols) == 0 {
		return db.NewTableSchema(id, nil, nil, nil, nil)
	}

	pk, err := db.QueryStrings(ctx, q, mssqlPrimaryKeyQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", id, err)
	}
	outgoing, err := db.QueryForeignKeys(ctx, q, mssqlOutgoingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("outgoing foreign keys of %s: %w", id, err)
	}
	incoming, err := db.QueryForeignKeys(ctx, q, mssqlIncomingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("incoming foreign keys of %s: %w", id, err)
	}
	return db.NewTableSchema(id, cols, pk, outgoing, incoming)
}

func (mssqlDialect) DefaultSchema(ctx context.Context, q db.Querier) (string, error) {
	return db.QuerySingle(ctx, q, `SELECT SCHEMA_NAME()`)
}

func (mssqlDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (mssqlDialect) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

func init() {
	db.Register("sqlserver", mssqlDialect{})
	db.Register("mssql", mssqlDialect{})
}

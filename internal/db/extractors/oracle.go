//go:build oracle
// +build oracle

package extractors

import (
	"context"
	"fmt"

	_ "github.com/godror/godror"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
)

// oracleDialect implements Dialect for Oracle. A schema is an owner.
type oracleDialect struct{}

const (
	oracleColumnsQuery = `
        SELECT column_name, data_type, CASE WHEN nullable = 'Y' THEN 1 ELSE 0 END
        FROM all_tab_columns
        WHERE owner = :1 AND table_name = :2
        ORDER BY column_id`

	oraclePrimaryKeyQuery = `
        SELECT acc.column_name
        FROM all_cons_columns acc
        JOIN all_constraints ac ON acc.owner = ac.owner AND acc.constraint_name = ac.constraint_name
        WHERE ac.constraint_type = 'P'
          AND ac.owner = :1 AND ac.table_name = :2
        ORDER BY acc.position`

	oracleForeignKeySelect = `
        SELECT a.constraint_name,
               acc.owner, acc.table_name, acc.column_name,
               rcc.owner, rcc.table_name, rcc.column_name
        FROM all_constraints a
        JOIN all_cons_columns acc
          ON a.owner = acc.owner AND a.constraint_name = acc.constraint_name
        JOIN all_cons_columns rcc
          ON a.r_owner = rcc.owner AND a.r_constraint_name = rcc.constraint_name
         AND acc.position = rcc.position
        WHERE a.constraint_type = 'R'`

	oracleForeignKeyOrder = `
        ORDER BY acc.owner, acc.table_name, a.constraint_name, acc.position`

	oracleOutgoingQuery = oracleForeignKeySelect + `
          AND acc.owner = :1 AND acc.table_name = :2` + oracleForeignKeyOrder

	oracleIncomingQuery = oracleForeignKeySelect + `
          AND rcc.owner = :1 AND rcc.table_name = :2` + oracleForeignKeyOrder
)

// Introspect describes one Oracle table.
func (oracleDialect) Introspect(ctx context.Context, q db.Querier, schema, table string) (*introspect.TableSchema, error) {
	id := introspect.TableID{Schema: schema, Name: table}

	cols, err := db.QueryColumns(ctx, q, oracleColumnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", id, err)
	}
	if len(cols) == 0 {
		return db.NewTableSchema(id, nil, nil, nil, nil)
	}

	pk, err := db.QueryStrings(ctx, q, oraclePrimaryKeyQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", id, err)
	}
	outgoing, err := db.QueryForeignKeys(ctx, q, oracleOutgoingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("outgoing foreign keys of %s: %w", id, err)
	}
	incoming, err := db.QueryForeignKeys(ctx, q, oracleIncomingQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("incoming foreign keys of %s: %w", id, err)
	}
	return db.NewTableSchema(id, cols, pk, outgoing, incoming)
}

func (oracleDialect) DefaultSchema(ctx context.Context, q db.Querier) (string, error) {
	return db.QuerySingle(ctx, q, `SELECT SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') FROM dual`)
}

func (oracleDialect) QuoteIdent(name string) string {
	return db.QuoteIdentDouble(name)
}

func (oracleDialect) Placeholder(n int) string {
	return fmt.Sprintf(":%d", n)
}

func init() {
	db.Register("godror", oracleDialect{})
	db.Register("oracle", oracleDialect{})
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sendyhalim/lezeh/internal/introspect"
	"github.com/sendyhalim/lezeh/internal/value"
)

// Filter is one equality condition of a row lookup.
type Filter struct {
	Column string
	Value  value.Value
}

// Select describes a row lookup: every row of Schema.Table matching all of
// Where, ordered by OrderBy.
type Select struct {
	Schema  string
	Table   string
	Where   []Filter
	OrderBy []string
}

// Field is one column of a fetched row as the driver returned it.
type Field struct {
	Name string
	// Type is the driver reported database type name, possibly empty.
	Type  string
	Value any
}

// RawRow is a fetched row with its columns in result order.
type RawRow []Field

// Gateway runs the read-only queries of a cherry-pick against one database.
type Gateway struct {
	conn    *sql.DB
	dialect Dialect
	retry   RetryConfig
}

// NewGateway wraps an open connection.
func NewGateway(conn *sql.DB, dialect Dialect, retry RetryConfig) *Gateway {
	return &Gateway{conn: conn, dialect: dialect, retry: retry}
}

func (g *Gateway) Dialect() Dialect { return g.dialect }

func (g *Gateway) Close() error { return g.conn.Close() }

// DefaultSchema returns the schema unqualified tables resolve to.
func (g *Gateway) DefaultSchema(ctx context.Context) (string, error) {
	var schema string
	err := withRetry(ctx, g.retry, "default schema", func() error {
		var err error
		schema, err = g.dialect.DefaultSchema(ctx, g.conn)
		return err
	})
	return schema, err
}

// IntrospectTable describes schema.table.
func (g *Gateway) IntrospectTable(ctx context.Context, schema, table string) (*introspect.TableSchema, error) {
	var t *introspect.TableSchema
	err := withRetry(ctx, g.retry, "introspect "+schema+"."+table, func() error {
		var err error
		t, err = g.dialect.Introspect(ctx, g.conn, schema, table)
		return err
	})
	return t, err
}

// BuildQuery renders s as a parameterized SELECT for the gateway's dialect.
func BuildQuery(d Dialect, s Select) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	if s.Schema != "" {
		b.WriteString(d.QuoteIdent(s.Schema))
		b.WriteByte('.')
	}
	b.WriteString(d.QuoteIdent(s.Table))

	args := make([]any, 0, len(s.Where))
	for i, f := range s.Where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(d.QuoteIdent(f.Column))
		b.WriteString(" = ")
		b.WriteString(d.Placeholder(i + 1))
		args = append(args, f.Value.Arg())
	}

	for i, c := range s.OrderBy {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(c))
	}
	return b.String(), args
}

// FetchRows returns every row matching s.
func (g *Gateway) FetchRows(ctx context.Context, s Select) ([]RawRow, error) {
	query, args := BuildQuery(g.dialect, s)

	var out []RawRow
	err := withRetry(ctx, g.retry, "fetch "+s.Schema+"."+s.Table, func() error {
		var err error
		out, err = g.query(ctx, query, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) query(ctx context.Context, query string, args []any) ([]RawRow, error) {
	rows, err := g.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	var out []RawRow
	for rows.Next() {
		dest := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(RawRow, len(types))
		for i, ct := range types {
			row[i] = Field{Name: ct.Name(), Type: ct.DatabaseTypeName(), Value: dest[i]}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}

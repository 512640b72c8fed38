package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sendyhalim/lezeh/internal/introspect"
)

// ForeignKeyColumn is one column pair of a foreign key as the catalog
// queries return it. Rows belonging to one constraint are expected to be
// adjacent and ordered by position.
type ForeignKeyColumn struct {
	Constraint string
	From       introspect.TableID
	FromColumn string
	To         introspect.TableID
	ToColumn   string
}

// GroupForeignKeys folds per-column rows into relations, keeping the order
// in which constraints first appear.
func GroupForeignKeys(cols []ForeignKeyColumn) []introspect.ForeignKey {
	var out []introspect.ForeignKey
	index := map[string]int{}
	for _, c := range cols {
		key := c.From.String() + "\x00" + c.Constraint
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, introspect.ForeignKey{Constraint: c.Constraint, From: c.From, To: c.To})
		}
		out[i].FromColumns = append(out[i].FromColumns, c.FromColumn)
		out[i].ToColumns = append(out[i].ToColumns, c.ToColumn)
	}
	return out
}

// QueryColumns runs a query returning (name, type, nullable) rows.
func QueryColumns(ctx context.Context, q Querier, query string, args ...any) ([]introspect.Column, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var cols []introspect.Column
	for rows.Next() {
		var col introspect.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// QueryStrings runs a query returning a single text column.
func QueryStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// QueryForeignKeys runs a query returning (constraint, from schema, from
// table, from column, to schema, to table, to column) rows.
func QueryForeignKeys(ctx context.Context, q Querier, query string, args ...any) ([]introspect.ForeignKey, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var cols []ForeignKeyColumn
	for rows.Next() {
		var c ForeignKeyColumn
		if err := rows.Scan(&c.Constraint, &c.From.Schema, &c.From.Name, &c.FromColumn,
			&c.To.Schema, &c.To.Name, &c.ToColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return GroupForeignKeys(cols), nil
}

// QuerySingle returns the first column of the first row.
func QuerySingle(ctx context.Context, q Querier, query string, args ...any) (string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var s sql.NullString
	if rows.Next() {
		if err := rows.Scan(&s); err != nil {
			return "", err
		}
	}
	return s.String, rows.Err()
}

// NewTableSchema assembles a table description. No columns means the table
// does not exist.
func NewTableSchema(id introspect.TableID, cols []introspect.Column, pk []string, outgoing, incoming []introspect.ForeignKey) (*introspect.TableSchema, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", introspect.ErrTableNotFound, id)
	}
	t := &introspect.TableSchema{
		ID:       id,
		Columns:  cols,
		Outgoing: outgoing,
		Incoming: incoming,
	}
	t.MarkPrimaryKey(pk)
	return t, nil
}

// QuoteIdentDouble quotes an identifier the ANSI way, doubling embedded
// double quotes.
func QuoteIdentDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

package cherrypick

import (
	"context"
	"errors"
	"sync"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
	"github.com/sendyhalim/lezeh/internal/value"
)

// fakeTable is an in-memory table; rows are kept in primary key order.
type fakeTable struct {
	schema *introspect.TableSchema
	rows   [][]any
}

// fakeDB serves both introspection and row lookups from memory.
type fakeDB struct {
	tables map[introspect.TableID]*fakeTable
	// fail makes lookups on the named table return failErr.
	fail    string
	failErr error

	mu      sync.Mutex
	queries []db.Select
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: map[introspect.TableID]*fakeTable{}}
}

func (f *fakeDB) addTable(t *introspect.TableSchema, rows ...[]any) {
	f.tables[t.ID] = &fakeTable{schema: t, rows: rows}
}

func (f *fakeDB) IntrospectTable(ctx context.Context, schema, table string) (*introspect.TableSchema, error) {
	t, ok := f.tables[introspect.TableID{Schema: schema, Name: table}]
	if !ok {
		return nil, introspect.ErrTableNotFound
	}
	return t.schema, nil
}

func (f *fakeDB) FetchRows(ctx context.Context, s db.Select) ([]db.RawRow, error) {
	f.mu.Lock()
	f.queries = append(f.queries, s)
	f.mu.Unlock()

	if s.Table == f.fail {
		return nil, f.failErr
	}
	t, ok := f.tables[introspect.TableID{Schema: s.Schema, Name: s.Table}]
	if !ok {
		return nil, errors.New("no such table " + s.Table)
	}

	var out []db.RawRow
	for _, row := range t.rows {
		if !f.matches(t.schema, row, s.Where) {
			continue
		}
		raw := make(db.RawRow, len(row))
		for i, c := range t.schema.Columns {
			raw[i] = db.Field{Name: c.Name, Value: row[i]}
		}
		out = append(out, raw)
	}
	return out, nil
}

func (f *fakeDB) matches(t *introspect.TableSchema, row []any, where []db.Filter) bool {
	for _, w := range where {
		idx := -1
		for i, c := range t.Columns {
			if c.Name == w.Column {
				idx = i
			}
		}
		if idx < 0 {
			return false
		}
		got := value.Decode(row[idx], t.Columns[idx].Type)
		if value.Key(got) != value.Key(w.Value) {
			return false
		}
	}
	return true
}

func (f *fakeDB) queryCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q.Table == table {
			n++
		}
	}
	return n
}

func tid(name string) introspect.TableID {
	return introspect.TableID{Schema: "public", Name: name}
}

func col(name, typ string, pk bool) introspect.Column {
	return introspect.Column{Name: name, Type: typ, Nullable: !pk, PK: pk}
}

func fk(constraint, from, fromCol, to, toCol string) introspect.ForeignKey {
	return introspect.ForeignKey{
		Constraint:  constraint,
		From:        tid(from),
		FromColumns: []string{fromCol},
		To:          tid(to),
		ToColumns:   []string{toCol},
	}
}

var (
	fkOrderCustomer = fk("orders_customer_id_fkey", "orders", "customer_id", "customers", "id")
	fkItemOrder     = fk("order_items_order_id_fkey", "order_items", "order_id", "orders", "id")
	fkCategory      = fk("categories_parent_id_fkey", "categories", "parent_id", "categories", "id")
)

// shopDB has customers <- orders <- order_items.
func shopDB() *fakeDB {
	f := newFakeDB()
	f.addTable(&introspect.TableSchema{
		ID:         tid("customers"),
		Columns:    []introspect.Column{col("id", "int8", true), col("name", "text", false)},
		PrimaryKey: []string{"id"},
		Incoming:   []introspect.ForeignKey{fkOrderCustomer},
	},
		[]any{int64(1), "Ann"},
		[]any{int64(2), "Bob"},
	)
	f.addTable(&introspect.TableSchema{
		ID:         tid("orders"),
		Columns:    []introspect.Column{col("id", "int8", true), col("customer_id", "int8", false), col("total", "numeric", false)},
		PrimaryKey: []string{"id"},
		Outgoing:   []introspect.ForeignKey{fkOrderCustomer},
		Incoming:   []introspect.ForeignKey{fkItemOrder},
	},
		[]any{int64(123), int64(1), []byte("19.90")},
		[]any{int64(124), int64(2), []byte("5.00")},
	)
	f.addTable(&introspect.TableSchema{
		ID:         tid("order_items"),
		Columns:    []introspect.Column{col("id", "int8", true), col("order_id", "int8", false), col("sku", "varchar", false)},
		PrimaryKey: []string{"id"},
		Outgoing:   []introspect.ForeignKey{fkItemOrder},
	},
		[]any{int64(1000), int64(123), "A-1"},
		[]any{int64(1001), int64(123), "B-2"},
		[]any{int64(1002), int64(124), "A-1"},
	)
	return f
}

// categoryDB has a self referencing hierarchy; row 5 is its own parent.
func categoryDB() *fakeDB {
	f := newFakeDB()
	f.addTable(&introspect.TableSchema{
		ID:         tid("categories"),
		Columns:    []introspect.Column{col("id", "int4", true), col("parent_id", "int4", false), col("name", "text", false)},
		PrimaryKey: []string{"id"},
		Outgoing:   []introspect.ForeignKey{fkCategory},
		Incoming:   []introspect.ForeignKey{fkCategory},
	},
		[]any{int64(1), nil, "root"},
		[]any{int64(2), int64(1), "books"},
		[]any{int64(3), int64(2), "novels"},
		[]any{int64(4), int64(1), "music"},
		[]any{int64(5), int64(5), "loop"},
	)
	return f
}

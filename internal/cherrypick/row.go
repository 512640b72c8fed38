package cherrypick

import (
	"strings"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
	"github.com/sendyhalim/lezeh/internal/value"
)

// RowKey identifies a row: its table plus the canonical rendering of its
// primary key. Tables without a primary key are keyed on every column.
type RowKey struct {
	Table introspect.TableID
	ID    string
}

func (k RowKey) String() string {
	return k.Table.String() + "#" + k.ID
}

// Row is a fetched record.
type Row struct {
	Key   RowKey
	Table *introspect.TableSchema
	// Columns holds the column names in result order.
	Columns []string
	Values  map[string]value.Value
}

// NewRow decodes a raw row of table t. The driver reported type wins over
// the declared one when both are known.
func NewRow(t *introspect.TableSchema, raw db.RawRow) *Row {
	r := &Row{
		Table:   t,
		Columns: make([]string, len(raw)),
		Values:  make(map[string]value.Value, len(raw)),
	}
	for i, f := range raw {
		typeName := f.Type
		if typeName == "" {
			if c, ok := t.Column(f.Name); ok {
				typeName = c.Type
			}
		}
		r.Columns[i] = f.Name
		r.Values[f.Name] = value.Decode(f.Value, typeName)
	}
	r.Key = RowKey{Table: t.ID, ID: identity(r.Values, keyColumns(t, r.Columns))}
	return r
}

// Value returns the value of column, NULL when absent.
func (r *Row) Value(column string) value.Value {
	if v, ok := r.Values[column]; ok {
		return v
	}
	return value.Null{}
}

// ValuesOf returns the values of columns in order.
func (r *Row) ValuesOf(columns []string) []value.Value {
	out := make([]value.Value, len(columns))
	for i, c := range columns {
		out[i] = r.Value(c)
	}
	return out
}

func keyColumns(t *introspect.TableSchema, columns []string) []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}
	return columns
}

func identity(values map[string]value.Value, columns []string) string {
	lits := make([]string, len(columns))
	for i, c := range columns {
		v, ok := values[c]
		if !ok {
			v = value.Null{}
		}
		lits[i] = v.SQLLiteral()
	}
	return identityOf(lits)
}

func identityOf(lits []string) string {
	if len(lits) == 1 {
		return lits[0]
	}
	return "(" + strings.Join(lits, ", ") + ")"
}

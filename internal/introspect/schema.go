package introspect

import (
	"errors"
	"strings"
)

// ErrTableNotFound is returned by introspection when the requested table does
// not exist in the requested schema.
var ErrTableNotFound = errors.New("table not found")

// TableID identifies a table within a database.
type TableID struct {
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name   string `json:"name" yaml:"name"`
}

func (id TableID) String() string {
	if id.Schema == "" {
		return id.Name
	}
	return id.Schema + "." + id.Name
}

// Column represents a table column.
type Column struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	PK       bool   `json:"pk" yaml:"pk"`
}

// ForeignKey represents a foreign key relationship: From holds the
// referencing columns, To the referenced ones, pairwise by position.
type ForeignKey struct {
	Constraint  string   `json:"constraint" yaml:"constraint"`
	From        TableID  `json:"from" yaml:"from"`
	FromColumns []string `json:"from_columns" yaml:"from_columns"`
	To          TableID  `json:"to" yaml:"to"`
	ToColumns   []string `json:"to_columns" yaml:"to_columns"`
}

func (fk ForeignKey) String() string {
	return fk.Constraint + " (" + fk.From.String() + "(" + strings.Join(fk.FromColumns, ", ") + ") -> " +
		fk.To.String() + "(" + strings.Join(fk.ToColumns, ", ") + "))"
}

// SelfReferencing reports whether the relation points back at its own table.
func (fk ForeignKey) SelfReferencing() bool {
	return fk.From == fk.To
}

// TableSchema is everything the cherry-pick traversal needs to know about a
// table. It is immutable once built.
type TableSchema struct {
	ID         TableID  `json:"id" yaml:"id"`
	Columns    []Column `json:"columns" yaml:"columns"`
	PrimaryKey []string `json:"primary_key" yaml:"primary_key"`
	// Outgoing relations reference other tables (this table's parents).
	Outgoing []ForeignKey `json:"outgoing,omitempty" yaml:"outgoing,omitempty"`
	// Incoming relations are held by other tables referencing this one
	// (this table's children).
	Incoming []ForeignKey `json:"incoming,omitempty" yaml:"incoming,omitempty"`
}

// Column looks a column up by name.
func (t *TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in ordinal order.
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// MarkPrimaryKey sets PrimaryKey and flags the matching columns.
func (t *TableSchema) MarkPrimaryKey(columns []string) {
	t.PrimaryKey = columns
	for _, pk := range columns {
		for j := range t.Columns {
			if t.Columns[j].Name == pk {
				t.Columns[j].PK = true
			}
		}
	}
}

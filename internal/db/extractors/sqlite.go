package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
)

// sqliteDialect implements Dialect for SQLite using the table valued pragma
// functions. SQLite does not name foreign keys, so constraints are called
// fk_<referencing table>_<id>.
type sqliteDialect struct{}

const sqliteDefaultSchema = "main"

func (sqliteDialect) Introspect(ctx context.Context, q db.Querier, schema, table string) (*introspect.TableSchema, error) {
	if schema == "" {
		schema = sqliteDefaultSchema
	}
	id := introspect.TableID{Schema: schema, Name: table}

	cols, pk, err := sqliteColumns(ctx, q, schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", id, err)
	}
	if len(cols) == 0 {
		return db.NewTableSchema(id, nil, nil, nil, nil)
	}

	outgoing, err := sqliteOutgoing(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("outgoing foreign keys of %s: %w", id, err)
	}
	incoming, err := sqliteIncoming(ctx, q, id, pk)
	if err != nil {
		return nil, fmt.Errorf("incoming foreign keys of %s: %w", id, err)
	}
	return db.NewTableSchema(id, cols, pk, outgoing, incoming)
}

// sqliteColumns returns the columns in declaration order and the primary key
// in key order.
func sqliteColumns(ctx context.Context, q db.Querier, schema, table string) ([]introspect.Column, []string, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT name, type, "notnull", pk
        FROM pragma_table_info(?, ?)
        ORDER BY cid`, table, schema)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type pkCol struct {
		name string
		pos  int
	}
	var cols []introspect.Column
	var pks []pkCol
	for rows.Next() {
		var name, ctype string
		var notnull, pk int
		if err := rows.Scan(&name, &ctype, &notnull, &pk); err != nil {
			return nil, nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, introspect.Column{Name: name, Type: ctype, Nullable: notnull == 0 && pk == 0})
		if pk > 0 {
			pks = append(pks, pkCol{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].pos < pks[j].pos })
	pk := make([]string, len(pks))
	for i, p := range pks {
		pk[i] = p.name
	}
	return cols, pk, nil
}

func sqliteConstraintName(table string, id int) string {
	return fmt.Sprintf("fk_%s_%d", table, id)
}

func sqliteOutgoing(ctx context.Context, q db.Querier, from introspect.TableID) ([]introspect.ForeignKey, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT id, "table", "from", "to"
        FROM pragma_foreign_key_list(?, ?)
        ORDER BY id, seq`, from.Name, from.Schema)
	if err != nil {
		return nil, err
	}

	var cols []db.ForeignKeyColumn
	var missingTo []int
	for rows.Next() {
		var fkID int
		var target, fromCol string
		var toCol sql.NullString
		if err := rows.Scan(&fkID, &target, &fromCol, &toCol); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		if !toCol.Valid {
			missingTo = append(missingTo, len(cols))
		}
		cols = append(cols, db.ForeignKeyColumn{
			Constraint: sqliteConstraintName(from.Name, fkID),
			From:       from,
			FromColumn: fromCol,
			To:         introspect.TableID{Schema: from.Schema, Name: target},
			ToColumn:   toCol.String,
		})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// REFERENCES parent without a column list points at the parent's
	// primary key, by position.
	if len(missingTo) > 0 {
		pks := map[string][]string{}
		for _, i := range missingTo {
			c := &cols[i]
			pk, ok := pks[c.To.Name]
			if !ok {
				_, pk, err = sqliteColumns(ctx, q, c.To.Schema, c.To.Name)
				if err != nil {
					return nil, err
				}
				pks[c.To.Name] = pk
			}
			pos := sqlitePosition(cols, i)
			if pos < len(pk) {
				c.ToColumn = pk[pos]
			}
		}
	}
	return db.GroupForeignKeys(cols), nil
}

// sqlitePosition is the index of cols[i] within its constraint.
func sqlitePosition(cols []db.ForeignKeyColumn, i int) int {
	pos := 0
	for j := i - 1; j >= 0 && cols[j].Constraint == cols[i].Constraint; j-- {
		pos++
	}
	return pos
}

func sqliteIncoming(ctx context.Context, q db.Querier, to introspect.TableID, pk []string) ([]introspect.ForeignKey, error) {
	master := db.QuoteIdentDouble(to.Schema) + ".sqlite_master"
	rows, err := q.QueryContext(ctx, `
        SELECT m.name, f.id, f."from", f."to"
        FROM `+master+` m, pragma_foreign_key_list(m.name, ?) f
        WHERE m.type = 'table' AND f."table" = ? COLLATE NOCASE
        ORDER BY m.name, f.id, f.seq`, to.Schema, to.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []db.ForeignKeyColumn
	for rows.Next() {
		var from string
		var fkID int
		var fromCol string
		var toCol sql.NullString
		if err := rows.Scan(&from, &fkID, &fromCol, &toCol); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		cols = append(cols, db.ForeignKeyColumn{
			Constraint: sqliteConstraintName(from, fkID),
			From:       introspect.TableID{Schema: to.Schema, Name: from},
			FromColumn: fromCol,
			To:         to,
			ToColumn:   toCol.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cols {
		if cols[i].ToColumn == "" {
			if pos := sqlitePosition(cols, i); pos < len(pk) {
				cols[i].ToColumn = pk[pos]
			}
		}
	}
	return db.GroupForeignKeys(cols), nil
}

func (sqliteDialect) DefaultSchema(context.Context, db.Querier) (string, error) {
	return sqliteDefaultSchema, nil
}

func (sqliteDialect) QuoteIdent(name string) string {
	return db.QuoteIdentDouble(name)
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func init() {
	db.Register("sqlite3", sqliteDialect{})
	db.Register("sqlite", sqliteDialect{})
}

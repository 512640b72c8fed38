// Package cherrypick collects a row together with every row it references
// and every row referencing it, transitively, into a Graph.
package cherrypick

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sendyhalim/lezeh/internal/db"
	"github.com/sendyhalim/lezeh/internal/introspect"
	"github.com/sendyhalim/lezeh/internal/logger"
	"github.com/sendyhalim/lezeh/internal/value"
)

var (
	// ErrFetch means a row lookup failed; the traversal is abandoned.
	ErrFetch = errors.New("fetch failed")
	// ErrRowNotFound means a root value matched no row.
	ErrRowNotFound = errors.New("row not found")
	// ErrUnknownColumn means the root column does not exist.
	ErrUnknownColumn = errors.New("unknown column")
)

// FetchError describes a failed lookup.
type FetchError struct {
	Table introspect.TableID
	// Row is the row being expanded, zero for root lookups.
	Row        RowKey
	Constraint string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch ")
	b.WriteString(e.Table.String())
	if e.Row != (RowKey{}) {
		b.WriteString(" for ")
		b.WriteString(e.Row.String())
	}
	if e.Constraint != "" {
		b.WriteString(" via ")
		b.WriteString(e.Constraint)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// RowSource runs row lookups. *db.Gateway implements it.
type RowSource interface {
	FetchRows(ctx context.Context, s db.Select) ([]db.RawRow, error)
}

// SchemaSource describes tables. *catalog.Catalog implements it.
type SchemaSource interface {
	Get(ctx context.Context, schema, table string) (*introspect.TableSchema, error)
}

// Options tunes a Builder.
type Options struct {
	// Concurrency bounds the lookups running at once while one row is
	// expanded. Values below one mean one.
	Concurrency int
	// OnRow, when set, is called for every row added to the graph.
	OnRow func(*Row)
}

// Root selects the rows a cherry-pick starts from: every row of
// Schema.Table whose Column equals one of Values.
type Root struct {
	Schema string
	Table  string
	Column string
	Values []string
}

// Builder runs the breadth first fetch-and-link traversal.
type Builder struct {
	schemas SchemaSource
	source  RowSource
	opts    Options
}

func NewBuilder(schemas SchemaSource, source RowSource, opts Options) *Builder {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Builder{schemas: schemas, source: source, opts: opts}
}

// Build returns the complete graph reachable from root, or an error. No
// partial graph is ever returned.
func (b *Builder) Build(ctx context.Context, root Root) (*Graph, error) {
	t, err := b.schemas.Get(ctx, root.Schema, root.Table)
	if err != nil {
		return nil, err
	}
	col, ok := t.Column(root.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.ID, root.Column)
	}
	if len(root.Values) == 0 {
		return nil, fmt.Errorf("%w: no value given for %s.%s", ErrRowNotFound, t.ID, root.Column)
	}

	g := NewGraph()
	var queue []*Row

	for _, text := range root.Values {
		v := value.Parse(text, col.Type)
		raw, err := b.source.FetchRows(ctx, db.Select{
			Schema:  t.ID.Schema,
			Table:   t.ID.Name,
			Where:   []db.Filter{{Column: col.Name, Value: v}},
			OrderBy: orderBy(t),
		})
		if err != nil {
			return nil, &FetchError{Table: t.ID, Err: err}
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: %s where %s = %s", ErrRowNotFound, t.ID, col.Name, v.SQLLiteral())
		}
		for _, rr := range raw {
			r := NewRow(t, rr)
			if b.add(g, r) {
				queue = append(queue, r)
			}
			if err := g.AddRoot(r.Key); err != nil {
				return nil, err
			}
		}
	}

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]

		found, err := b.expand(ctx, g, r)
		if err != nil {
			return nil, err
		}
		queue = append(queue, found...)
	}

	logger.Debug("cherry-pick finished: %d rows, %d edges", g.Len(), len(g.edges))
	return g, nil
}

func (b *Builder) add(g *Graph, r *Row) bool {
	if !g.AddNode(r) {
		return false
	}
	if b.opts.OnRow != nil {
		b.opts.OnRow(r)
	}
	return true
}

// lookup is one relation to follow from the row being expanded.
type lookup struct {
	fk        introspect.ForeignKey
	direction Direction
	// known is set when the related row is already in the graph and needs
	// no query.
	known *Row
	rows  []*Row
}

// expand follows every relation of r and returns the rows seen for the
// first time.
func (b *Builder) expand(ctx context.Context, g *Graph, r *Row) ([]*Row, error) {
	logger.Debug("expanding %s", r.Key)

	var lookups []*lookup
	for _, fk := range r.Table.Outgoing {
		if hasNull(r.ValuesOf(fk.FromColumns)) {
			continue
		}
		lookups = append(lookups, &lookup{fk: fk, direction: Parent})
	}
	for _, fk := range r.Table.Incoming {
		if hasNull(r.ValuesOf(fk.ToColumns)) {
			continue
		}
		lookups = append(lookups, &lookup{fk: fk, direction: Child})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.opts.Concurrency)
	for _, l := range lookups {
		l := l
		eg.Go(func() error {
			return b.fetch(egCtx, g, r, l)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Merge sequentially so discovery order only depends on relation order.
	var found []*Row
	for _, l := range lookups {
		related := l.rows
		if l.known != nil {
			related = []*Row{l.known}
		}
		for _, other := range related {
			if b.add(g, other) {
				found = append(found, other)
			} else {
				other, _ = g.Node(other.Key)
			}

			e := Edge{From: r.Key, To: other.Key, Relation: l.fk, Direction: Parent}
			if l.direction == Child {
				e = Edge{From: other.Key, To: r.Key, Relation: l.fk, Direction: Child}
			}
			if _, err := g.AddEdge(e); err != nil {
				return nil, err
			}
		}
	}
	return found, nil
}

// fetch runs one lookup. It only reads the graph; the graph is not written
// while lookups run.
func (b *Builder) fetch(ctx context.Context, g *Graph, r *Row, l *lookup) error {
	var (
		target               introspect.TableID
		matchCols, valueCols []string
	)
	if l.direction == Parent {
		target, matchCols, valueCols = l.fk.To, l.fk.ToColumns, l.fk.FromColumns
	} else {
		target, matchCols, valueCols = l.fk.From, l.fk.FromColumns, l.fk.ToColumns
	}

	t, err := b.schemas.Get(ctx, target.Schema, target.Name)
	if err != nil {
		return &FetchError{Table: target, Row: r.Key, Constraint: l.fk.Constraint, Err: err}
	}
	values := r.ValuesOf(valueCols)

	// A parent referenced through its primary key may already be known.
	if l.direction == Parent && sameColumns(matchCols, t.PrimaryKey) {
		lits := make([]string, len(values))
		for i, v := range values {
			lits[i] = v.SQLLiteral()
		}
		if known, ok := g.Node(RowKey{Table: t.ID, ID: identityOf(lits)}); ok {
			l.known = known
			return nil
		}
	}

	where := make([]db.Filter, len(matchCols))
	for i, c := range matchCols {
		where[i] = db.Filter{Column: c, Value: values[i]}
	}
	raw, err := b.source.FetchRows(ctx, db.Select{
		Schema:  t.ID.Schema,
		Table:   t.ID.Name,
		Where:   where,
		OrderBy: orderBy(t),
	})
	if err != nil {
		return &FetchError{Table: t.ID, Row: r.Key, Constraint: l.fk.Constraint, Err: err}
	}

	l.rows = make([]*Row, len(raw))
	for i, rr := range raw {
		l.rows[i] = NewRow(t, rr)
	}
	return nil
}

// orderBy keeps fetches deterministic: the primary key, or every column for
// keyless tables.
func orderBy(t *introspect.TableSchema) []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}
	return t.ColumnNames()
}

func hasNull(values []value.Value) bool {
	for _, v := range values {
		if v.Kind() == value.KindNull {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

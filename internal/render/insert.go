// Package render turns a cherry-pick graph into text.
package render

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/sendyhalim/lezeh/internal/cherrypick"
)

// ErrCyclicDependency means the rows cannot be ordered so that every
// referenced row is inserted before the rows referencing it.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CycleError lists the rows that could not be ordered.
type CycleError struct {
	Rows []cherrypick.RowKey
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Rows))
	for i, k := range e.Rows {
		names[i] = k.String()
	}
	return ErrCyclicDependency.Error() + " between " + strings.Join(names, ", ")
}

func (e *CycleError) Is(target error) bool { return target == ErrCyclicDependency }

// Quoter quotes an identifier for the target database.
type Quoter func(name string) string

// InsertStatements returns one INSERT per row, referenced rows first. Rows
// that are free to go in any order keep their discovery order. A row
// referencing itself does not constrain the order.
func InsertStatements(g *cherrypick.Graph, quote Quoter) ([]string, error) {
	order, err := InsertOrder(g)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		r, _ := g.Node(k)
		out = append(out, insertStatement(r, quote))
	}
	return out, nil
}

// InsertOrder returns the row keys in a valid insertion order.
func InsertOrder(g *cherrypick.Graph) ([]cherrypick.RowKey, error) {
	deps := graph.New(func(k cherrypick.RowKey) cherrypick.RowKey { return k }, graph.Directed())

	for _, r := range g.Nodes() {
		if err := deps.AddVertex(r.Key); err != nil {
			return nil, fmt.Errorf("add row %s: %w", r.Key, err)
		}
	}
	for _, e := range g.Edges() {
		if e.SelfLoop() {
			continue
		}
		// referenced row -> referencing row
		if err := deps.AddEdge(e.To, e.From); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("add reference %s -> %s: %w", e.From, e.To, err)
		}
	}

	order, err := stableOrder(g, deps)
	if err != nil {
		return nil, err
	}
	if len(order) != g.Len() {
		return nil, cycleError(g, deps)
	}
	return order, nil
}

// stableOrder is Kahn's algorithm popping the ready row discovered first.
// Rows left on a cycle are not emitted.
func stableOrder(g *cherrypick.Graph, deps graph.Graph[cherrypick.RowKey, cherrypick.RowKey]) ([]cherrypick.RowKey, error) {
	preds, err := deps.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("predecessors: %w", err)
	}
	succs, err := deps.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("successors: %w", err)
	}

	pending := make(map[cherrypick.RowKey]int, len(preds))
	ready := &readyQueue{index: g.Index}
	for k, p := range preds {
		pending[k] = len(p)
		if len(p) == 0 {
			heap.Push(ready, k)
		}
	}

	order := make([]cherrypick.RowKey, 0, len(preds))
	for ready.Len() > 0 {
		k := heap.Pop(ready).(cherrypick.RowKey)
		order = append(order, k)
		for next := range succs[k] {
			pending[next]--
			if pending[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}
	return order, nil
}

// readyQueue is a min-heap of row keys by discovery index.
type readyQueue struct {
	keys  []cherrypick.RowKey
	index func(cherrypick.RowKey) int
}

func (q *readyQueue) Len() int           { return len(q.keys) }
func (q *readyQueue) Less(i, j int) bool { return q.index(q.keys[i]) < q.index(q.keys[j]) }
func (q *readyQueue) Swap(i, j int)      { q.keys[i], q.keys[j] = q.keys[j], q.keys[i] }
func (q *readyQueue) Push(x any)         { q.keys = append(q.keys, x.(cherrypick.RowKey)) }

func (q *readyQueue) Pop() any {
	n := len(q.keys) - 1
	k := q.keys[n]
	q.keys = q.keys[:n]
	return k
}

func cycleError(g *cherrypick.Graph, deps graph.Graph[cherrypick.RowKey, cherrypick.RowKey]) error {
	sccs, err := graph.StronglyConnectedComponents(deps)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCyclicDependency, err)
	}

	var rows []cherrypick.RowKey
	for _, scc := range sccs {
		if len(scc) > 1 {
			rows = append(rows, scc...)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return g.Index(rows[i]) < g.Index(rows[j]) })
	return &CycleError{Rows: rows}
}

func insertStatement(r *cherrypick.Row, quote Quoter) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	if r.Key.Table.Schema != "" {
		b.WriteString(quote(r.Key.Table.Schema))
		b.WriteByte('.')
	}
	b.WriteString(quote(r.Key.Table.Name))
	b.WriteString(" (")
	for i, c := range r.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(c))
	}
	b.WriteString(") VALUES (")
	for i, c := range r.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.Value(c).SQLLiteral())
	}
	b.WriteString(");")
	return b.String()
}

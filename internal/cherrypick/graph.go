package cherrypick

import (
	"fmt"

	"github.com/sendyhalim/lezeh/internal/introspect"
)

// Direction records how an edge was discovered.
type Direction uint8

const (
	// Parent edges were found while expanding the referencing row.
	Parent Direction = iota
	// Child edges were found while expanding the referenced row.
	Child
)

func (d Direction) String() string {
	if d == Child {
		return "child"
	}
	return "parent"
}

// Edge says that From references To through Relation.
type Edge struct {
	From      RowKey
	To        RowKey
	Relation  introspect.ForeignKey
	Direction Direction
}

// SelfLoop reports whether a row references itself.
func (e Edge) SelfLoop() bool { return e.From == e.To }

type edgeKey struct {
	from, to   RowKey
	constraint string
}

// Graph holds the rows of a cherry-pick and the references between them.
// Nodes and edges keep their discovery order.
type Graph struct {
	nodes map[RowKey]*Row
	index map[RowKey]int
	order []RowKey

	edges   []Edge
	edgeSet map[edgeKey]struct{}

	roots []RowKey
}

func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[RowKey]*Row),
		index:   make(map[RowKey]int),
		edgeSet: make(map[edgeKey]struct{}),
	}
}

// AddNode inserts r unless a row with the same key is present. It reports
// whether r was added.
func (g *Graph) AddNode(r *Row) bool {
	if _, ok := g.nodes[r.Key]; ok {
		return false
	}
	g.nodes[r.Key] = r
	g.index[r.Key] = len(g.order)
	g.order = append(g.order, r.Key)
	return true
}

// AddRoot marks an existing node as a traversal root.
func (g *Graph) AddRoot(k RowKey) error {
	if _, ok := g.nodes[k]; !ok {
		return fmt.Errorf("root %s is not a node", k)
	}
	for _, r := range g.roots {
		if r == k {
			return nil
		}
	}
	g.roots = append(g.roots, k)
	return nil
}

// AddEdge records e unless an edge with the same endpoints and constraint
// exists. Both endpoints must already be nodes.
func (g *Graph) AddEdge(e Edge) (bool, error) {
	if _, ok := g.nodes[e.From]; !ok {
		return false, fmt.Errorf("edge %s: unknown row %s", e.Relation.Constraint, e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return false, fmt.Errorf("edge %s: unknown row %s", e.Relation.Constraint, e.To)
	}
	k := edgeKey{from: e.From, to: e.To, constraint: e.Relation.Constraint}
	if _, ok := g.edgeSet[k]; ok {
		return false, nil
	}
	g.edgeSet[k] = struct{}{}
	g.edges = append(g.edges, e)
	return true, nil
}

func (g *Graph) Node(k RowKey) (*Row, bool) {
	r, ok := g.nodes[k]
	return r, ok
}

// Index is the discovery position of k, or -1.
func (g *Graph) Index(k RowKey) int {
	if i, ok := g.index[k]; ok {
		return i
	}
	return -1
}

// Nodes returns the rows in discovery order.
func (g *Graph) Nodes() []*Row {
	out := make([]*Row, len(g.order))
	for i, k := range g.order {
		out[i] = g.nodes[k]
	}
	return out
}

func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

func (g *Graph) Roots() []RowKey {
	return append([]RowKey(nil), g.roots...)
}

// Root returns the first root, the row the cherry-pick started from.
func (g *Graph) Root() (*Row, bool) {
	if len(g.roots) == 0 {
		return nil, false
	}
	return g.Node(g.roots[0])
}

func (g *Graph) Len() int { return len(g.order) }

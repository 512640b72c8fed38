package render

import (
	"strings"

	"github.com/sendyhalim/lezeh/internal/cherrypick"
)

// DisplayColumns maps a table, by name or schema.table, to the columns shown
// in its graph nodes.
type DisplayColumns map[string][]string

func (d DisplayColumns) lookup(r *cherrypick.Row) []string {
	if cols, ok := d[r.Key.Table.String()]; ok {
		return cols
	}
	if cols, ok := d[r.Key.Table.Name]; ok {
		return cols
	}
	if len(r.Table.PrimaryKey) > 0 {
		return r.Table.PrimaryKey
	}
	return r.Columns
}

// Graphviz renders g as a DOT digraph. Each row becomes a node labelled with
// its table and the display columns of that table (the primary key when the
// table has none configured); each reference becomes an edge labelled with
// its constraint. Output follows discovery order.
func Graphviz(g *cherrypick.Graph, display DisplayColumns) string {
	var b strings.Builder
	b.WriteString("digraph cherry_pick {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"Helvetica\"];\n")

	roots := map[cherrypick.RowKey]bool{}
	for _, k := range g.Roots() {
		roots[k] = true
	}

	for _, r := range g.Nodes() {
		lines := []string{r.Key.Table.String()}
		for _, c := range display.lookup(r) {
			v, ok := r.Values[c]
			if !ok {
				continue
			}
			lines = append(lines, c+": "+v.Label())
		}

		b.WriteString("  ")
		b.WriteString(dotID(r.Key.String()))
		b.WriteString(" [label=")
		b.WriteString(dotLabel(lines))
		if roots[r.Key] {
			b.WriteString(", style=bold")
		}
		b.WriteString("];\n")
	}

	for _, e := range g.Edges() {
		b.WriteString("  ")
		b.WriteString(dotID(e.From.String()))
		b.WriteString(" -> ")
		b.WriteString(dotID(e.To.String()))
		b.WriteString(" [label=")
		b.WriteString(dotID(e.Relation.Constraint))
		b.WriteString("];\n")
	}

	b.WriteString("}\n")
	return b.String()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

func dotID(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func dotLabel(lines []string) string {
	escaped := make([]string, len(lines))
	for i, l := range lines {
		escaped[i] = dotEscaper.Replace(l)
	}
	return `"` + strings.Join(escaped, `\n`) + `"`
}

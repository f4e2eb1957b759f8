package resolve

import (
	"sort"
	"strconv"
	"strings"

	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/source"
)

// edge records "from must be tried before to" in the precedence DAG.
type edge struct{ from, to int }

// applyPrecedence reads each definition's own "priority: before "..."
// directives, builds a DAG over definition IDs, topologically sorts it,
// and assigns the resulting rank as Definition.Priority. A cycle breaks
// the tie the DAG cannot resolve: one pattern on the cycle is released,
// dropping all of its remaining incoming constraints, a diagnostic is
// raised, and the rest of the DAG still sorts.
func applyPrecedence(defs []*pattern.Definition, bus *diag.Bus) {
	var edges []edge
	for _, d := range defs {
		for _, targetRaw := range priorityTargets(d) {
			if t := findByRaw(defs, targetRaw); t != nil && t.ID != d.ID {
				edges = append(edges, edge{from: d.ID, to: t.ID})
			}
		}
	}
	if len(edges) == 0 {
		return
	}
	order := topoSortWithCycleBreak(edges, defs, bus)
	for rank, id := range order {
		if d := findByID(defs, id); d != nil {
			d.Priority = rank + 1
		}
	}
}

// priorityTargets scans a definition's own top-level body lines for
// `priority: before "<other header>"` directives, returning the quoted
// header text of each.
func priorityTargets(d *pattern.Definition) []string {
	if d.Body == nil {
		return nil
	}
	var targets []string
	for _, cl := range d.Body.Lines {
		const prefix = "priority: before"
		if !strings.HasPrefix(cl.Trimmed, prefix) {
			continue
		}
		rest := strings.TrimSpace(cl.Trimmed[len(prefix):])
		if unquoted, err := strconv.Unquote(rest); err == nil {
			targets = append(targets, unquoted)
		}
	}
	return targets
}

func findByRaw(defs []*pattern.Definition, raw string) *pattern.Definition {
	for _, d := range defs {
		if d.Raw == raw {
			return d
		}
	}
	return nil
}

func findByID(defs []*pattern.Definition, id int) *pattern.Definition {
	for _, d := range defs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// topoSortWithCycleBreak runs Kahn's algorithm over the edges, breaking
// any cycle by forcibly releasing the lowest-numbered still-blocked node
// and reporting a diagnostic once per break.
func topoSortWithCycleBreak(edges []edge, defs []*pattern.Definition, bus *diag.Bus) []int {
	nodes := map[int]bool{}
	outgoing := map[int][]int{}
	indeg := map[int]int{}
	for _, e := range edges {
		nodes[e.from] = true
		nodes[e.to] = true
		outgoing[e.from] = append(outgoing[e.from], e.to)
		indeg[e.to]++
	}

	var queue []int
	for n := range nodes {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}

	var order []int
	done := map[int]bool{}
	for len(order) < len(nodes) {
		if len(queue) == 0 {
			var blocked []int
			for n := range nodes {
				if !done[n] {
					blocked = append(blocked, n)
				}
			}
			sort.Ints(blocked)
			victim := blocked[0]
			bus.Errorf(diag.KindCyclicPrecedence, source.Range{}, "precedence cycle detected at pattern %q; dropping its remaining constraints", rawOrID(defs, victim))
			indeg[victim] = 0
			queue = append(queue, victim)
			continue
		}
		sort.Ints(queue)
		n := queue[0]
		queue = queue[1:]
		if done[n] {
			continue
		}
		done[n] = true
		order = append(order, n)
		for _, m := range outgoing[n] {
			indeg[m]--
			if indeg[m] <= 0 && !done[m] {
				queue = append(queue, m)
			}
		}
	}
	return order
}

func rawOrID(defs []*pattern.Definition, id int) string {
	if d := findByID(defs, id); d != nil {
		return d.Raw
	}
	return strconv.Itoa(id)
}

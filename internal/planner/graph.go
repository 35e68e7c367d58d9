// Package planner implements the save planner: it builds an
// overlap graph over the segments being written to the save target, breaks
// any dependency cycles by spilling the minimum overlapped data into a
// side store, and rewrites the target file in an order that never
// destroys bytes a later write still needs.
package planner

import (
	"sort"

	"github.com/gaby/blessbuf/internal/dset"
	"github.com/gaby/blessbuf/internal/pqueue"
)

// Direction is the per-segment block-copy direction used to handle
// self-overlap within a single segment's write.
type Direction int

const (
	// DirNone means the write destination equals the read source: a
	// no-op copy.
	DirNone Direction = iota
	// DirAscending writes front-to-back (destination strictly lower
	// than source).
	DirAscending
	// DirDescending writes back-to-front (destination strictly higher
	// than source).
	DirDescending
)

// Vertex is a segment being written into the save target, indexed by
// its position among all such segments (not its position in the full
// buffer). HasSource is true for segments that also read from the
// target (their own write requires read-protection against other
// vertices' writes); it is false for segments sourced elsewhere (plain
// memory or a different file) that only ever appear as a destination,
// never as something another vertex's write could threaten to destroy
// partway through.
type Vertex struct {
	Index     int
	DestOff   int64 // mapping: this segment's destination offset in the target
	SrcOff    int64 // this segment's source offset within the target (meaningless unless HasSource)
	Length    int64
	Dir       Direction
	HasSource bool
}

func directionOf(destOff, srcOff int64) Direction {
	switch {
	case destOff > srcOff:
		return DirDescending
	case destOff < srcOff:
		return DirAscending
	default:
		return DirNone
	}
}

// Edge is a directed, weighted dependency: writing To's destination
// range would destroy From's still-needed source bytes, so From must be
// written before To.
type Edge struct {
	From, To int
	Weight   int64
}

func overlapLen(aStart, aEnd, bStart, bEnd int64) int64 {
	lo := aStart
	if bStart > lo {
		lo = bStart
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Graph is the overlap graph over a fixed set of vertices: SelfLoops[i]
// is the self-overlap weight for vertex i (0 if none); Edges holds every
// inter-vertex dependency with positive weight.
type Graph struct {
	Vertices  []Vertex
	SelfLoops []int64
	Edges     []Edge
}

// BuildGraph computes the overlap graph over every vertex being written
// to the target, whether or not it has a source there: edge i->j
// exists, weighted by the overlap byte count, whenever vertex j's
// destination range intersects vertex i's source range. Vertices with
// HasSource false (written from elsewhere, never read back from the
// target) never originate an edge — nothing they write can threaten a
// read they never perform — but they still participate as a "j": any
// vertex whose source range would be destroyed by their write is still
// ordered ahead of them.
func BuildGraph(vertices []Vertex) *Graph {
	g := &Graph{Vertices: vertices, SelfLoops: make([]int64, len(vertices))}
	for i := range vertices {
		vi := vertices[i]
		if !vi.HasSource {
			continue
		}
		srcStart, srcEnd := vi.SrcOff, vi.SrcOff+vi.Length
		for j := range vertices {
			vj := vertices[j]
			destStart, destEnd := vj.DestOff, vj.DestOff+vj.Length
			w := overlapLen(srcStart, srcEnd, destStart, destEnd)
			if w == 0 {
				continue
			}
			if i == j {
				g.SelfLoops[i] = w
				continue
			}
			g.Edges = append(g.Edges, Edge{From: i, To: j, Weight: w})
		}
	}
	return g
}

// CycleBreak is the result of running the greedy maximum-spanning-forest
// cycle breaker over a Graph's inter-vertex edges.
type CycleBreak struct {
	Kept    []Edge
	Removed []Edge
	Spill   map[int]bool // vertex indices whose source must be spilled
}

// BreakCycles processes g's edges in descending weight order (ties
// broken by insertion/construction order), using a disjoint-set forest
// to detect edges that would close a cycle. Cycle-closing edges are
// removed and their From vertex is marked for spilling; the rest form a
// maximum-weight spanning forest and become ordering constraints for the
// topological write order.
func BreakCycles(g *Graph) (*CycleBreak, error) {
	n := len(g.Vertices)
	pq := pqueue.New()
	for _, e := range g.Edges {
		pq.Add(e, e.Weight, nil)
	}
	ds := dset.New(n)
	result := &CycleBreak{Spill: make(map[int]bool)}
	for pq.Size() > 0 {
		v, err := pq.RemoveMax()
		if err != nil {
			return nil, err
		}
		e := v.(Edge)
		connected, err := ds.Connected(e.From, e.To)
		if err != nil {
			return nil, err
		}
		if connected {
			result.Removed = append(result.Removed, e)
			result.Spill[e.From] = true
			continue
		}
		if err := ds.Union(e.From, e.To); err != nil {
			return nil, err
		}
		result.Kept = append(result.Kept, e)
	}
	return result, nil
}

// TopoOrder returns a write order over all vertices [0,n) — spilled ones
// included — such that for every kept edge, From precedes To. Edges out
// of a spilled vertex are dropped first: spilling satisfies that
// vertex's own dependency on reading the target in place, so it no
// longer constrains anything it used to point at; incoming edges still
// apply, since the vertex is still physically written to the target.
// Vertices are processed in ascending index order on ties, for
// determinism.
func TopoOrder(n int, kept []Edge, spill map[int]bool) []int {
	adj := make(map[int][]int, n)
	indeg := make([]int, n)
	for _, e := range kept {
		if spill[e.From] {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		indeg[e.To]++
	}

	order := make([]int, 0, n)
	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)
	for len(ready) > 0 {
		sort.Ints(ready)
		v := ready[0]
		ready = ready[1:]
		order = append(order, v)
		for _, to := range adj[v] {
			indeg[to]--
			if indeg[to] == 0 {
				ready = append(ready, to)
			}
		}
	}
	return order
}

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v(destOff, srcOff, length int64) Vertex {
	return Vertex{DestOff: destOff, SrcOff: srcOff, Length: length, Dir: directionOf(destOff, srcOff), HasSource: true}
}

// indep builds a vertex for a segment sourced elsewhere (never read back
// from the target), which can still be threatened by — but never itself
// threatens — another vertex's read.
func indep(destOff, length int64) Vertex {
	return Vertex{DestOff: destOff, Length: length}
}

func TestBuildGraphSingleSelfOverlap(t *testing.T) {
	g := BuildGraph([]Vertex{v(8, 5, 10)})
	require.Len(t, g.SelfLoops, 1)
	assert.Equal(t, int64(7), g.SelfLoops[0])
	assert.Empty(t, g.Edges)
}

func TestBuildGraphSingleSelfOverlapAscending(t *testing.T) {
	g := BuildGraph([]Vertex{v(18, 20, 5)})
	assert.Equal(t, int64(3), g.SelfLoops[0])
}

func TestBuildGraphThreeVertexCycle(t *testing.T) {
	// Reproduces the three-segment overlap-graph fixture: edges
	// 0->0 (w3), 0->2 (w3), 1->0 (w2), 2->1 (w3).
	vertices := []Vertex{
		v(12, 5, 10),
		v(28, 20, 5),
		v(3, 30, 5),
	}
	g := BuildGraph(vertices)
	assert.Equal(t, int64(3), g.SelfLoops[0])
	assert.Equal(t, int64(0), g.SelfLoops[1])
	assert.Equal(t, int64(0), g.SelfLoops[2])

	assertHasEdge(t, g.Edges, 0, 2, 3)
	assertHasEdge(t, g.Edges, 1, 0, 2)
	assertHasEdge(t, g.Edges, 2, 1, 3)
	assert.Len(t, g.Edges, 3)
}

func assertHasEdge(t *testing.T, edges []Edge, from, to int, weight int64) {
	t.Helper()
	for _, e := range edges {
		if e.From == from && e.To == to {
			assert.Equal(t, weight, e.Weight, "edge %d->%d weight", from, to)
			return
		}
	}
	t.Fatalf("no edge %d->%d found in %v", from, to, edges)
}

func TestBreakCyclesRemovesMinimumWeightEdge(t *testing.T) {
	vertices := []Vertex{
		v(12, 5, 10),
		v(28, 20, 5),
		v(3, 30, 5),
	}
	g := BuildGraph(vertices)
	cycles, err := BreakCycles(g)
	require.NoError(t, err)

	require.Len(t, cycles.Removed, 1)
	assert.Equal(t, Edge{From: 1, To: 0, Weight: 2}, cycles.Removed[0])
	assert.True(t, cycles.Spill[1])
	assert.Len(t, cycles.Kept, 2)
}

func TestBreakCyclesAcyclicKeepsEverything(t *testing.T) {
	vertices := []Vertex{
		v(0, 10, 5),
		v(20, 0, 5),
	}
	g := BuildGraph(vertices)
	cycles, err := BreakCycles(g)
	require.NoError(t, err)
	assert.Empty(t, cycles.Removed)
	assert.Empty(t, cycles.Spill)
}

func TestTopoOrderRespectsKeptEdges(t *testing.T) {
	vertices := []Vertex{
		v(12, 5, 10),
		v(28, 20, 5),
		v(3, 30, 5),
	}
	g := BuildGraph(vertices)
	cycles, err := BreakCycles(g)
	require.NoError(t, err)

	order := TopoOrder(3, cycles.Kept, cycles.Spill)
	assert.Equal(t, []int{0, 2, 1}, order)
}

func TestTopoOrderDropsEdgesFromSpilledVertex(t *testing.T) {
	kept := []Edge{{From: 0, To: 1, Weight: 1}}
	spill := map[int]bool{0: true}
	order := TopoOrder(2, kept, spill)
	assert.ElementsMatch(t, []int{0, 1}, order)
}

func TestBuildGraphIndependentVertexOnlyAppearsAsTo(t *testing.T) {
	// vertex 0 still needs to read target bytes [5,10); vertex 1 is
	// sourced from elsewhere and would overwrite dest [6,8), which falls
	// inside vertex 0's still-needed source range.
	vertices := []Vertex{
		v(20, 5, 5),    // real: src [5,10) -> dest [20,25)
		indep(6, 2),    // independent: writes dest [6,8) from elsewhere
	}
	g := BuildGraph(vertices)
	assertHasEdge(t, g.Edges, 0, 1, 2)
	assert.Len(t, g.Edges, 1)
	assert.Equal(t, int64(0), g.SelfLoops[1])

	order := TopoOrder(2, g.Edges, map[int]bool{})
	assert.Equal(t, []int{0, 1}, order)
}

func TestCircularOverlapSpillsTheReaderVertex(t *testing.T) {
	// Mirrors the buffer [F1[5:10], F2[9:10], F1[1:4], F2[0:1]] scenario:
	// two target vertices with a two-cycle between them.
	vertices := []Vertex{
		v(0, 5, 5), // F1[5:10] -> dest [0,5)
		v(6, 1, 3), // F1[1:4]  -> dest [6,9)
	}
	g := BuildGraph(vertices)
	assertHasEdge(t, g.Edges, 0, 1, 3)
	assertHasEdge(t, g.Edges, 1, 0, 3)

	cycles, err := BreakCycles(g)
	require.NoError(t, err)
	require.Len(t, cycles.Removed, 1)
	assert.Len(t, cycles.Kept, 1)
	assert.Len(t, cycles.Spill, 1)
}

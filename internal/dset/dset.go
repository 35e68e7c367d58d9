// Package dset implements a disjoint-set (union-find) forest with path
// compression and union-by-rank, used by the save planner to detect
// cycle-closing edges while building a maximum-weight spanning forest
// over the overlap graph.
package dset

import "github.com/gaby/blessbuf/blerr"

// Set is a disjoint-set forest over the elements [0, n).
type Set struct {
	parent []int
	rank   []int
}

// New returns a forest of n singleton sets, one per element.
func New(n int) *Set {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &Set{parent: parent, rank: make([]int, n)}
}

func (s *Set) valid(x int) bool { return x >= 0 && x < len(s.parent) }

// Find returns the representative of x's set, compressing the path to
// the root as it walks up.
func (s *Set) Find(x int) (int, error) {
	if !s.valid(x) {
		return 0, blerr.New(blerr.EINVAL, "dset: element %d out of range [0,%d)", x, len(s.parent))
	}
	root := x
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for s.parent[x] != root {
		s.parent[x], x = root, s.parent[x]
	}
	return root, nil
}

// Union merges the sets containing x and y by attaching the lower-rank
// root under the higher-rank one (ties broken by attaching y's root
// under x's, and bumping its rank).
func (s *Set) Union(x, y int) error {
	rx, err := s.Find(x)
	if err != nil {
		return err
	}
	ry, err := s.Find(y)
	if err != nil {
		return err
	}
	if rx == ry {
		return nil
	}
	switch {
	case s.rank[rx] < s.rank[ry]:
		s.parent[rx] = ry
	case s.rank[rx] > s.rank[ry]:
		s.parent[ry] = rx
	default:
		s.parent[ry] = rx
		s.rank[rx]++
	}
	return nil
}

// Connected reports whether x and y share a root.
func (s *Set) Connected(x, y int) (bool, error) {
	rx, err := s.Find(x)
	if err != nil {
		return false, err
	}
	ry, err := s.Find(y)
	if err != nil {
		return false, err
	}
	return rx == ry, nil
}

package kdtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/bsp"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// NumberOfRegions returns the number of leaf regions, 0 when the tree is not
// built.
func (t *Tree) NumberOfRegions() int {
	if t.state == nil {
		return 0
	}
	return len(t.state.regions)
}

// Level returns the depth of the deepest region, 0 when the tree is not
// built.
func (t *Tree) Level() int {
	if t.state == nil {
		return 0
	}
	return t.state.level
}

// Bounds returns the bounds of the whole divided space.
func (t *Tree) Bounds() (geometry.Bounds, error) {
	s, err := t.built()
	if err != nil {
		return geometry.Bounds{}, err
	}
	return s.root().bounds, nil
}

func (t *Tree) RegionBounds(region int) (geometry.Bounds, error) {
	n, err := t.regionNode(region)
	if err != nil {
		return geometry.Bounds{}, err
	}
	return n.bounds, nil
}

// RegionDataBounds returns the tight bounds of the cell centroids or points
// assigned to a region.
func (t *Tree) RegionDataBounds(region int) (geometry.Bounds, error) {
	n, err := t.regionNode(region)
	if err != nil {
		return geometry.Bounds{}, err
	}
	return n.dataBounds, nil
}

func (t *Tree) regionNode(region int) (*node, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}
	if err := s.checkRegion(region); err != nil {
		return nil, err
	}
	return s.region(region), nil
}

// RegionContainingPoint returns the region whose half open bounds contain p,
// or -1 when p is outside the tree.
func (t *Tree) RegionContainingPoint(p r3.Vec) (int, error) {
	s, err := t.built()
	if err != nil {
		return -1, err
	}
	return s.regionContaining(p), nil
}

// RegionContainingCell returns the region holding the centroid of a cell of
// one of the datasets the tree was built from.
func (t *Tree) RegionContainingCell(set dataset.DataSet, cellID int) (int, error) {
	s, err := t.builtWith(CellMode)
	if err != nil {
		return -1, err
	}

	offset, count, err := s.cellRange(set)
	if err != nil {
		return -1, err
	}

	if cellID < 0 || cellID >= count {
		return -1, errors.New("cell id out of range").
			WithType(ErrTypeInvalidArgument).
			WithTag("cell", cellID).
			WithTag("cells", count)
	}
	return s.cellRegions[offset+cellID], nil
}

// AllRegionsContainingCells returns the region of every cell of a dataset,
// indexed by cell id.
func (t *Tree) AllRegionsContainingCells(set dataset.DataSet) ([]int, error) {
	s, err := t.builtWith(CellMode)
	if err != nil {
		return nil, err
	}

	offset, count, err := s.cellRange(set)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), s.cellRegions[offset:offset+count]...), nil
}

func (s *state) dataSetIndex(set dataset.DataSet) int {
	for i, ds := range s.sets {
		if ds == set {
			return i
		}
	}
	return -1
}

func (s *state) cellRange(set dataset.DataSet) (offset, count int, err error) {
	i := s.dataSetIndex(set)
	if i < 0 {
		return 0, 0, errors.New("dataset is not part of the built tree").
			WithType(ErrTypeInvalidArgument)
	}
	return s.cellOffsets[i], s.cellOffsets[i+1] - s.cellOffsets[i], nil
}

// Nodes returns a snapshot of every node, parents before children and left
// subtrees before right ones.
func (t *Tree) Nodes() ([]Node, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(s.nodes))
	s.preorder(func(ni int) {
		nodes = append(nodes, s.nodes[ni].snapshot())
	})
	return nodes, nil
}

// RegionsAtLevel returns the nodes at the given depth. Regions ending above
// that depth are returned in place of their missing descendants so that the
// result always covers the whole space.
func (t *Tree) RegionsAtLevel(level int) ([]Node, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}

	if level < 0 || level > s.level {
		return nil, errors.New("level out of range").
			WithType(ErrTypeInvalidArgument).
			WithTag("level", level).
			WithTag("max_level", s.level)
	}

	var nodes []Node
	var walk func(ni int)
	walk = func(ni int) {
		n := &s.nodes[ni]
		if n.level == level || n.isLeaf() {
			nodes = append(nodes, n.snapshot())
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(0)

	return nodes, nil
}

// Cuts returns the cuts of the built tree.
func (t *Tree) Cuts() (*bsp.Cuts, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}
	return s.cuts, nil
}

// CopyTree returns an independent copy of the cuts of the built tree.
func (t *Tree) CopyTree() (*bsp.Cuts, error) {
	cuts, err := t.Cuts()
	if err != nil {
		return nil, err
	}
	return bsp.NewCuts(cuts.Nodes())
}

// Intersections returns the intersection engine of the built tree.
func (t *Tree) Intersections(useDataBounds bool) (*bsp.Intersections, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}

	if useDataBounds {
		return s.dataIntersections, nil
	}
	return s.intersections, nil
}

func (t *Tree) IntersectsBox(region int, box geometry.Bounds, useDataBounds bool) (bool, error) {
	in, err := t.regionIntersections(region, useDataBounds)
	if err != nil {
		return false, err
	}
	return in.IntersectsBox(region, box)
}

// IntersectsBoxRegions returns the regions intersecting the box, restricted
// to candidates when some are given.
func (t *Tree) IntersectsBoxRegions(box geometry.Bounds, useDataBounds bool, candidates ...int) ([]int, error) {
	in, err := t.candidateIntersections(useDataBounds, candidates)
	if err != nil {
		return nil, err
	}
	return in.IntersectsBoxRegions(box, candidates...)
}

func (t *Tree) IntersectsSphere2(region int, center r3.Vec, r2 float64, useDataBounds bool) (bool, error) {
	in, err := t.regionIntersections(region, useDataBounds)
	if err != nil {
		return false, err
	}
	return in.IntersectsSphere2(region, center, r2)
}

func (t *Tree) IntersectsSphere2Regions(center r3.Vec, r2 float64, useDataBounds bool, candidates ...int) ([]int, error) {
	in, err := t.candidateIntersections(useDataBounds, candidates)
	if err != nil {
		return nil, err
	}
	return in.IntersectsSphere2Regions(center, r2, candidates...)
}

// IntersectsCell reports whether the cell intersects a region. knownRegion
// is the region holding the cell centroid, or -1 when unknown.
func (t *Tree) IntersectsCell(region int, cell dataset.Cell, knownRegion int, useDataBounds bool) (bool, error) {
	if cell == nil {
		return false, errors.New("nil cell").WithType(ErrTypeInvalidArgument)
	}

	in, err := t.regionIntersections(region, useDataBounds)
	if err != nil {
		return false, err
	}
	return in.IntersectsCell(region, cell, knownRegion)
}

func (t *Tree) IntersectsCellRegions(cell dataset.Cell, knownRegion int, useDataBounds bool, candidates ...int) ([]int, error) {
	if cell == nil {
		return nil, errors.New("nil cell").WithType(ErrTypeInvalidArgument)
	}

	in, err := t.candidateIntersections(useDataBounds, candidates)
	if err != nil {
		return nil, err
	}
	return in.IntersectsCellRegions(cell, knownRegion, candidates...)
}

func (t *Tree) regionIntersections(region int, useDataBounds bool) (*bsp.Intersections, error) {
	if _, err := t.regionNode(region); err != nil {
		return nil, err
	}
	return t.Intersections(useDataBounds)
}

func (t *Tree) candidateIntersections(useDataBounds bool, candidates []int) (*bsp.Intersections, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}

	for _, id := range candidates {
		if err := s.checkRegion(id); err != nil {
			return nil, err
		}
	}
	return t.Intersections(useDataBounds)
}

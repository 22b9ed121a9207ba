package bsp

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Intersections answers which regions of a cut tree intersect boxes,
// spheres and cells. It never modifies its state after creation and is safe
// for concurrent use.
type Intersections struct {
	cuts          *Cuts
	useDataBounds bool
}

func NewIntersections(cuts *Cuts) *Intersections {
	return &Intersections{cuts: cuts}
}

// WithDataBounds returns a copy that tests against the tight data bounds of
// the regions instead of their nominal bounds.
func (in *Intersections) WithDataBounds(use bool) *Intersections {
	c := *in
	c.useDataBounds = use
	return &c
}

func (in *Intersections) UsesDataBounds() bool {
	return in.useDataBounds
}

func (in *Intersections) Cuts() *Cuts {
	return in.cuts
}

func (in *Intersections) NumberOfRegions() int {
	if in.cuts == nil {
		return 0
	}
	return in.cuts.NumberOfRegions()
}

// RegionBounds returns the bounds tested for a region.
func (in *Intersections) RegionBounds(region int) (geometry.Bounds, error) {
	node, err := in.regionNode(region)
	if err != nil {
		return geometry.Bounds{}, err
	}
	return in.nodeBounds(node), nil
}

func (in *Intersections) regionNode(region int) (int, error) {
	if in.cuts == nil {
		return -1, errors.New("no cuts").WithType(ErrTypeNoCuts)
	}
	return in.cuts.RegionNode(region)
}

func (in *Intersections) nodeBounds(i int) geometry.Bounds {
	if in.useDataBounds {
		return in.cuts.nodes[i].DataBounds
	}
	return in.cuts.nodes[i].Bounds
}

// IntersectsBox reports whether a region intersects the box.
func (in *Intersections) IntersectsBox(region int, box geometry.Bounds) (bool, error) {
	node, err := in.regionNode(region)
	if err != nil {
		return false, err
	}
	return in.nodeBounds(node).IntersectsBox(box), nil
}

// IntersectsBoxRegions returns the ids of the regions intersecting the box.
// When candidates are given, only those regions are considered.
func (in *Intersections) IntersectsBoxRegions(box geometry.Bounds, candidates ...int) ([]int, error) {
	return in.collect(candidates, -1, func(b geometry.Bounds) bool {
		return b.IntersectsBox(box)
	}, nil)
}

// IntersectsSphere2 reports whether a region intersects the sphere of
// squared radius r2 centered at center.
func (in *Intersections) IntersectsSphere2(region int, center r3.Vec, r2 float64) (bool, error) {
	node, err := in.regionNode(region)
	if err != nil {
		return false, err
	}
	return in.nodeBounds(node).IntersectsSphere2(center, r2), nil
}

// IntersectsSphere2Regions returns the ids of the regions intersecting the
// sphere. When candidates are given, only those regions are considered.
func (in *Intersections) IntersectsSphere2Regions(center r3.Vec, r2 float64, candidates ...int) ([]int, error) {
	return in.collect(candidates, -1, func(b geometry.Bounds) bool {
		return b.IntersectsSphere2(center, r2)
	}, nil)
}

// IntersectsCell reports whether a region intersects the cell. knownRegion
// is the region containing the cell centroid, or -1 when unknown.
func (in *Intersections) IntersectsCell(region int, cell dataset.Cell, knownRegion int) (bool, error) {
	node, err := in.regionNode(region)
	if err != nil {
		return false, err
	}

	if knownRegion >= 0 && knownRegion == region {
		return true, nil
	}

	return CellIntersectsBox(cell, dataset.CellBounds(cell), in.nodeBounds(node)), nil
}

// IntersectsCellRegions returns the ids of the regions intersecting the
// cell. knownRegion is the region containing the cell centroid, or -1 when
// unknown. When candidates are given, only those regions are considered.
func (in *Intersections) IntersectsCellRegions(cell dataset.Cell, knownRegion int, candidates ...int) ([]int, error) {
	cellBounds := dataset.CellBounds(cell)

	return in.collect(candidates, knownRegion, func(b geometry.Bounds) bool {
		return b.IntersectsBox(cellBounds)
	}, func(b geometry.Bounds) bool {
		return CellIntersectsBox(cell, cellBounds, b)
	})
}

// collect walks the tree, pruning subtrees whose bounds fail prune, and
// returns the regions whose bounds pass accept. The region knownRegion is
// accepted without testing.
func (in *Intersections) collect(candidates []int, knownRegion int, prune, accept func(geometry.Bounds) bool) ([]int, error) {
	if in.cuts == nil {
		return nil, errors.New("no cuts").WithType(ErrTypeNoCuts)
	}

	var wanted []bool
	if len(candidates) != 0 {
		wanted = make([]bool, in.cuts.NumberOfRegions())
		for _, id := range candidates {
			if id < 0 || id >= len(wanted) {
				return nil, errors.New("region id out of range").
					WithType(ErrTypeRegionOutOfRange).
					WithTag("region", id).
					WithTag("regions", len(wanted))
			}
			wanted[id] = true
		}
	}

	var regions []int
	var walk func(i int)
	walk = func(i int) {
		minID, maxID := in.cuts.RegionRange(i)
		known := knownRegion >= minID && knownRegion <= maxID

		if !known && !prune(in.nodeBounds(i)) {
			return
		}

		n := in.cuts.nodes[i]
		if !n.IsLeaf() {
			walk(n.Left)
			walk(n.Right)
			return
		}

		id := in.cuts.regionIDs[i]
		if wanted != nil && !wanted[id] {
			return
		}
		if id == knownRegion || accept == nil || accept(in.nodeBounds(i)) {
			regions = append(regions, id)
		}
	}
	walk(0)

	return regions, nil
}

// CellIntersectsBox reports whether the cell touches the closed box.
// cellBounds are the bounds of the cell points.
func CellIntersectsBox(cell dataset.Cell, cellBounds, box geometry.Bounds) bool {
	if !box.IntersectsBox(cellBounds) {
		return false
	}

	points := cell.Points()
	for _, p := range points {
		if box.ContainsPointClosed(p) {
			return true
		}
	}

	dim := cell.Dimension()
	if dim == 0 {
		return false
	}

	for _, e := range cell.Edges() {
		if geometry.SegmentIntersectsBox(points[e[0]], points[e[1]], box) {
			return true
		}
	}
	if dim == 1 {
		return false
	}

	faces := cell.Faces()
	polygon := make([]r3.Vec, 0, 4)
	for _, edge := range box.Edges() {
		for _, face := range faces {
			polygon = polygon[:0]
			for _, pid := range face {
				polygon = append(polygon, points[pid])
			}
			if geometry.SegmentIntersectsPolygon(edge[0], edge[1], polygon) {
				return true
			}
		}
	}

	if dim == 3 {
		return geometry.PointInConvexPolyhedron(box.Min, points, faces)
	}
	return false
}

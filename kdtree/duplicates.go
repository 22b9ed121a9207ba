package kdtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// BuildMapForDuplicatePoints maps every point id to the id of the first
// point found within the tolerance of it, scanning regions in order. Points
// with no such predecessor map to themselves. Tolerances outside
// [0, maximum width) are clamped to the maximum width of the data.
func (t *Tree) BuildMapForDuplicatePoints(tolerance float64) ([]int, error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return nil, err
	}

	if tolerance < 0 || tolerance >= s.maxWidth || math.IsNaN(tolerance) {
		if tolerance != s.maxWidth {
			logs.Warn(errors.New("invalid duplicate point tolerance, using the data width").
				WithTag("tolerance", tolerance).
				WithTag("max_width", s.maxWidth))
		}
		tolerance = s.maxWidth
	}

	d := duplicateSearch{
		state:      s,
		tolerance:  tolerance,
		tolerance2: tolerance * tolerance,
		unique:     make([][]int, len(s.regions)),
	}

	canonical := make([]int, len(s.pointIDs))
	for region := range s.regions {
		for k := s.regionOffsets[region]; k < s.regionOffsets[region+1]; k++ {
			id := s.pointIDs[k]

			if found := d.search(region, k); found >= 0 {
				canonical[id] = s.pointIDs[found]
				continue
			}

			d.unique[region] = append(d.unique[region], k)
			canonical[id] = id
		}
	}
	return canonical, nil
}

type duplicateSearch struct {
	state      *state
	tolerance  float64
	tolerance2 float64

	// Locator indexes of the points kept as canonical so far, per region.
	unique [][]int
}

// search returns the locator index of a canonical point within the
// tolerance of the point at locator index k, or -1.
func (d *duplicateSearch) search(region, k int) int {
	p := d.state.locatorPoint(k)

	if found := d.searchRegion(region, p); found >= 0 {
		return found
	}
	if d.tolerance <= 0 || region == 0 {
		return -1
	}
	return d.searchNeighbours(region, p)
}

func (d *duplicateSearch) searchRegion(region int, p r3.Vec) int {
	for _, k := range d.unique[region] {
		if d.state.locatorDistance2(k, p) <= d.tolerance2 {
			return k
		}
	}
	return -1
}

// searchNeighbours looks for a canonical point in the regions whose data
// lies within the tolerance of p.
func (d *duplicateSearch) searchNeighbours(region int, p r3.Vec) int {
	s := d.state
	if s.region(region).bounds.Distance2ToInnerBoundary(p, s.root().bounds) >= d.tolerance2 {
		return -1
	}

	offset := r3.Vec{X: d.tolerance, Y: d.tolerance, Z: d.tolerance}
	box := geometry.Bounds{Min: r3.Sub(p, offset), Max: r3.Add(p, offset)}

	neighbours, err := s.dataIntersections.IntersectsBoxRegions(box)
	if err != nil {
		return -1
	}

	for _, neighbour := range neighbours {
		if neighbour == region || len(d.unique[neighbour]) == 0 {
			continue
		}
		if found := d.searchRegion(neighbour, p); found >= 0 {
			return found
		}
	}
	return -1
}

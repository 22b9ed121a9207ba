package kdtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// NumberOfPoints returns the number of points of a point build, 0 otherwise.
func (t *Tree) NumberOfPoints() int {
	if t.state == nil {
		return 0
	}
	return len(t.state.pointIDs)
}

// Point returns the point with the given id, as stored in the locator.
func (t *Tree) Point(id int) (r3.Vec, error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return r3.Vec{}, err
	}

	if err := s.checkPointID(id); err != nil {
		return r3.Vec{}, err
	}
	return s.locatorPoint(s.pointIndex[id]), nil
}

// FindPoint returns the id of a point equal to p once converted to single
// precision, or -1 when there is none.
func (t *Tree) FindPoint(p r3.Vec) (int, error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return -1, err
	}

	region := s.regionContaining(p)
	if region < 0 {
		return -1, nil
	}

	x, y, z := float32(p.X), float32(p.Y), float32(p.Z)
	for k := s.regionOffsets[region]; k < s.regionOffsets[region+1]; k++ {
		if s.points[3*k] == x && s.points[3*k+1] == y && s.points[3*k+2] == z {
			return s.pointIDs[k], nil
		}
	}
	return -1, nil
}

// PointsInRegion returns the ids of the points assigned to a region.
func (t *Tree) PointsInRegion(region int) ([]int, error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return nil, err
	}

	if err := s.checkRegion(region); err != nil {
		return nil, err
	}
	return append([]int(nil), s.pointIDs[s.regionOffsets[region]:s.regionOffsets[region+1]]...), nil
}

// FindPointsInArea returns the ids of the points inside the closed box.
func (t *Tree) FindPointsInArea(area geometry.Bounds) ([]int, error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return nil, err
	}

	if area.IsEmpty() {
		return nil, errors.New("empty area").
			WithType(ErrTypeInvalidArgument).
			WithTag("area", area)
	}

	var ids []int
	var walk func(ni int)
	walk = func(ni int) {
		n := &s.nodes[ni]
		if !n.dataBounds.IntersectsBox(area) {
			return
		}

		if area.ContainsBox(n.dataBounds) {
			ids = s.appendNodePoints(ids, n)
			return
		}

		if !n.isLeaf() {
			walk(n.left)
			walk(n.right)
			return
		}

		for k := s.regionOffsets[n.id]; k < s.regionOffsets[n.id+1]; k++ {
			if area.ContainsPointClosed(s.locatorPoint(k)) {
				ids = append(ids, s.pointIDs[k])
			}
		}
	}
	walk(0)

	return ids, nil
}

// FindPointsWithinRadius returns the ids of the points at distance r or less
// from p.
func (t *Tree) FindPointsWithinRadius(r float64, p r3.Vec) ([]int, error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return nil, err
	}

	if r < 0 || math.IsNaN(r) {
		return nil, errors.New("negative radius").
			WithType(ErrTypeInvalidArgument).
			WithTag("radius", r)
	}
	r2 := r * r

	var ids []int
	var walk func(ni int)
	walk = func(ni int) {
		n := &s.nodes[ni]
		if !n.dataBounds.IntersectsSphere2(p, r2) {
			return
		}

		if n.dataBounds.ContainedInSphere2(p, r2) {
			ids = s.appendNodePoints(ids, n)
			return
		}

		if !n.isLeaf() {
			walk(n.left)
			walk(n.right)
			return
		}

		for k := s.regionOffsets[n.id]; k < s.regionOffsets[n.id+1]; k++ {
			if s.locatorDistance2(k, p) <= r2 {
				ids = append(ids, s.pointIDs[k])
			}
		}
	}
	walk(0)

	return ids, nil
}

func (s *state) checkPointID(id int) error {
	if id < 0 || id >= len(s.pointIDs) {
		return errors.New("point id out of range").
			WithType(ErrTypeInvalidArgument).
			WithTag("point", id).
			WithTag("points", len(s.pointIDs))
	}
	return nil
}

// appendNodePoints appends the ids of every point under a node. The points
// of the regions under a node are contiguous in the locator.
func (s *state) appendNodePoints(ids []int, n *node) []int {
	return append(ids, s.pointIDs[s.regionOffsets[n.minID]:s.regionOffsets[n.maxID+1]]...)
}

func (s *state) locatorPoint(k int) r3.Vec {
	return r3.Vec{
		X: float64(s.points[3*k]),
		Y: float64(s.points[3*k+1]),
		Z: float64(s.points[3*k+2]),
	}
}

func (s *state) locatorDistance2(k int, p r3.Vec) float64 {
	return r3.Norm2(r3.Sub(s.locatorPoint(k), p))
}

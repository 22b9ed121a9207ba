package kdtree

import (
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
)

// MinimalNumberOfConvexSubRegions returns the bounds of the fewest tree
// nodes whose union is exactly the union of the given regions.
func (t *Tree) MinimalNumberOfConvexSubRegions(regions []int) ([]geometry.Bounds, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}

	if len(regions) == 0 {
		return nil, errors.New("no regions").WithType(ErrTypeInvalidArgument)
	}

	for _, id := range regions {
		if err := s.checkRegion(id); err != nil {
			return nil, err
		}
	}

	ids := slices.Clone(regions)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var bounds []geometry.Bounds
	var walk func(ni int, ids []int)
	walk = func(ni int, ids []int) {
		n := &s.nodes[ni]
		if n.maxID-n.minID+1 == len(ids) {
			bounds = append(bounds, n.bounds)
			return
		}
		if n.isLeaf() {
			return
		}

		leftMax := s.nodes[n.left].maxID
		split, _ := slices.BinarySearch(ids, leftMax+1)
		if split > 0 {
			walk(n.left, ids[:split])
		}
		if split < len(ids) {
			walk(n.right, ids[split:])
		}
	}
	walk(0, ids)

	return bounds, nil
}

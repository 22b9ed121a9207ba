package kdtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// ViewOrderAllRegionsInDirection orders all regions front to back for a
// viewer looking along dir.
func (t *Tree) ViewOrderAllRegionsInDirection(dir r3.Vec) ([]int, error) {
	return t.ViewOrderRegionsInDirection(nil, dir)
}

// ViewOrderRegionsInDirection orders the given regions, or all regions when
// none are given, front to back for a viewer looking along dir.
func (t *Tree) ViewOrderRegionsInDirection(regions []int, dir r3.Vec) ([]int, error) {
	return t.viewOrder(regions, func(n *node) bool {
		return -geometry.Coord(dir, n.dim) < 0
	})
}

// ViewOrderAllRegionsFromPosition orders all regions front to back for a
// viewer at pos.
func (t *Tree) ViewOrderAllRegionsFromPosition(pos r3.Vec) ([]int, error) {
	return t.ViewOrderRegionsFromPosition(nil, pos)
}

// ViewOrderRegionsFromPosition orders the given regions, or all regions
// when none are given, front to back for a viewer at pos.
func (t *Tree) ViewOrderRegionsFromPosition(regions []int, pos r3.Vec) ([]int, error) {
	return t.viewOrder(regions, func(n *node) bool {
		return geometry.Coord(pos, n.dim)-n.coord < 0
	})
}

// viewOrder walks the tree visiting first the child for which leftFirst
// says the viewer sees the lower side first.
func (t *Tree) viewOrder(regions []int, leftFirst func(*node) bool) ([]int, error) {
	s, err := t.built()
	if err != nil {
		return nil, err
	}

	var wanted []bool
	if len(regions) != 0 {
		wanted = make([]bool, len(s.regions))
		for _, id := range regions {
			if err := s.checkRegion(id); err != nil {
				return nil, err
			}
			wanted[id] = true
		}
	}

	order := make([]int, 0, len(s.regions))
	var walk func(ni int) error
	walk = func(ni int) error {
		n := &s.nodes[ni]
		if n.isLeaf() {
			if wanted == nil || wanted[n.id] {
				order = append(order, n.id)
			}
			return nil
		}

		if !n.dim.Valid() {
			return errors.New("invalid cut dimension").
				WithType(ErrTypeInvalidArgument).
				WithTag("dim", int(n.dim))
		}

		near, far := n.right, n.left
		if leftFirst(n) {
			near, far = n.left, n.right
		}

		if err := walk(near); err != nil {
			return err
		}
		return walk(far)
	}

	if err := walk(0); err != nil {
		return nil, err
	}
	return order, nil
}

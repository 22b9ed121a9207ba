package kdtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/tidwall/tinyqueue"
	"gonum.org/v1/gonum/spatial/r3"
)

// FindClosestPoint returns the id of the point closest to p and its squared
// distance, the lowest id on ties. p may be outside the tree.
func (t *Tree) FindClosestPoint(p r3.Vec) (id int, dist2 float64, err error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return -1, 0, err
	}

	root := s.root().bounds
	region := s.regionContaining(p)
	outside := region < 0
	if outside {
		// Start from the region nearest to p, nudging the closest point
		// of the tree just inside its bounds.
		q := root.ClosestPoint(p)
		q.X = nudgeInside(q.X, root.Min.X, root.Max.X, s.fudgeFactor)
		q.Y = nudgeInside(q.Y, root.Min.Y, root.Max.Y, s.fudgeFactor)
		q.Z = nudgeInside(q.Z, root.Min.Z, root.Max.Z, s.fudgeFactor)
		region = s.regionContaining(q)
	}

	closest, minDist2 := -1, math.Inf(1)
	if region >= 0 {
		closest, minDist2 = s.closestInRegion(region, p)
	}

	if outside || closest < 0 || minDist2 > 0 && s.region(region).bounds.Distance2ToInnerBoundary(p, root) <= minDist2 {
		if k, d2 := s.closestInSphere(p, minDist2, region); k >= 0 && s.closer(k, d2, closest, minDist2) {
			closest, minDist2 = k, d2
		}
	}

	if closest < 0 {
		return -1, 0, nil
	}
	return s.pointIDs[closest], minDist2, nil
}

func nudgeInside(v, lo, hi, fudge float64) float64 {
	if v <= lo {
		v = lo + fudge
	}
	if v >= hi {
		v = hi - fudge
	}
	return v
}

// FindClosestPointWithinRadius returns the id of the point closest to p
// among those at distance r or less, or -1 when there is none.
func (t *Tree) FindClosestPointWithinRadius(r float64, p r3.Vec) (id int, dist2 float64, err error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return -1, 0, err
	}

	if r < 0 || math.IsNaN(r) {
		return -1, 0, errors.New("negative radius").
			WithType(ErrTypeInvalidArgument).
			WithTag("radius", r)
	}

	k, d2 := s.closestInSphere(p, r*r, -1)
	if k < 0 {
		return -1, 0, nil
	}
	return s.pointIDs[k], d2, nil
}

// FindClosestPointInRegion returns the id of the point of a region closest
// to p.
func (t *Tree) FindClosestPointInRegion(region int, p r3.Vec) (id int, dist2 float64, err error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return -1, 0, err
	}

	if err := s.checkRegion(region); err != nil {
		return -1, 0, err
	}

	k, d2 := s.closestInRegion(region, p)
	if k < 0 {
		return -1, 0, nil
	}
	return s.pointIDs[k], d2, nil
}

// closer reports whether the point at locator index i and squared distance
// d2 beats the one at index k and squared distance dist2. k is -1 when there
// is no point yet.
func (s *state) closer(i int, d2 float64, k int, dist2 float64) bool {
	if k < 0 || d2 < dist2 {
		return true
	}
	return d2 == dist2 && s.pointIDs[i] < s.pointIDs[k]
}

// closestInRegion returns the locator index of the point of a region
// closest to p, or -1 when the region has no points.
func (s *state) closestInRegion(region int, p r3.Vec) (k int, dist2 float64) {
	k, dist2 = -1, math.Inf(1)
	for i := s.regionOffsets[region]; i < s.regionOffsets[region+1]; i++ {
		if d2 := s.locatorDistance2(i, p); s.closer(i, d2, k, dist2) {
			k, dist2 = i, d2
		}
	}
	return k, dist2
}

// closestInSphere returns the locator index of the point closest to p among
// those at squared distance r2 or less, skipping a region. It returns -1
// when there is none.
func (s *state) closestInSphere(p r3.Vec, r2 float64, skipRegion int) (k int, dist2 float64) {
	regions, err := s.dataIntersections.IntersectsSphere2Regions(p, r2)
	if err != nil {
		return -1, 0
	}

	k, dist2 = -1, math.Inf(1)
	for _, region := range regions {
		if region == skipRegion {
			continue
		}
		if k >= 0 && s.region(region).dataBounds.Distance2(p) > dist2 {
			continue
		}

		if i, d2 := s.closestInRegion(region, p); i >= 0 && d2 <= r2 && s.closer(i, d2, k, dist2) {
			k, dist2 = i, d2
		}
	}
	return k, dist2
}

type neighbour struct {
	dist2 float64
	id    int
}

// Less orders neighbours from the farthest to the closest so that the queue
// head is the first one to evict.
func (n *neighbour) Less(item tinyqueue.Item) bool {
	o := item.(*neighbour)
	if n.dist2 != o.dist2 {
		return n.dist2 > o.dist2
	}
	return n.id > o.id
}

// nearestN keeps the n closest points seen, ties broken by the lowest id.
type nearestN struct {
	n     int
	queue *tinyqueue.Queue
}

func newNearestN(n int) *nearestN {
	return &nearestN{
		n:     n,
		queue: tinyqueue.New(nil),
	}
}

func (q *nearestN) insert(dist2 float64, id int) {
	candidate := &neighbour{dist2: dist2, id: id}
	if q.queue.Len() < q.n {
		q.queue.Push(candidate)
		return
	}

	if q.queue.Peek().Less(candidate) {
		q.queue.Pop()
		q.queue.Push(candidate)
	}
}

// largestDist2 returns the distance a point must not exceed to be kept.
func (q *nearestN) largestDist2() float64 {
	if q.queue.Len() < q.n {
		return math.Inf(1)
	}
	return q.queue.Peek().(*neighbour).dist2
}

// sorted empties the queue and returns its ids from the closest to the
// farthest.
func (q *nearestN) sorted() []int {
	ids := make([]int, q.queue.Len())
	for i := len(ids) - 1; i >= 0; i-- {
		ids[i] = q.queue.Pop().(*neighbour).id
	}
	return ids
}

// FindClosestNPoints returns the ids of the n points closest to p, from the
// closest to the farthest. Points at the same distance are ordered by id.
// When n exceeds the number of points, every point is returned.
func (t *Tree) FindClosestNPoints(n int, p r3.Vec) ([]int, error) {
	s, err := t.builtWith(PointMode)
	if err != nil {
		return nil, err
	}

	if n <= 0 {
		return nil, errors.New("number of requested points must be positive").
			WithType(ErrTypeInvalidArgument).
			WithTag("n", n)
	}

	if total := len(s.pointIDs); n > total {
		logs.WithTag("requested", n).
			WithTag("points", total).
			Debug("more closest points requested than the k-d tree holds")
		n = total
	}

	start := s.startingNode(n, p)
	nearest := newNearestN(n)

	first := &s.nodes[start]
	for k := s.regionOffsets[first.minID]; k < s.regionOffsets[first.maxID+1]; k++ {
		nearest.insert(s.locatorDistance2(k, p), s.pointIDs[k])
	}

	// Visit the other nodes breadth first, skipping those that cannot hold a
	// point closer than the farthest kept one.
	queue := []int{0}
	for len(queue) != 0 {
		ni := queue[0]
		queue = queue[1:]
		if ni == start {
			continue
		}

		nd := &s.nodes[ni]
		if !nd.isLeaf() {
			for _, child := range [2]int{nd.left, nd.right} {
				if s.nodes[child].dataBounds.Distance2(p) <= nearest.largestDist2() {
					queue = append(queue, child)
				}
			}
			continue
		}

		for k := s.regionOffsets[nd.id]; k < s.regionOffsets[nd.id+1]; k++ {
			if d2 := s.locatorDistance2(k, p); d2 <= nearest.largestDist2() {
				nearest.insert(d2, s.pointIDs[k])
			}
		}
	}

	return nearest.sorted(), nil
}

// startingNode returns a node holding at least n points, as small as
// possible, on the way to the region containing p or to the closest one
// when p is outside the tree.
func (s *state) startingNode(n int, p r3.Vec) int {
	inside := s.root().bounds.ContainsPoint(p)

	ni, prev := 0, 0
	for {
		nd := &s.nodes[ni]
		if nd.isLeaf() || nd.numberOfPoints <= n {
			break
		}
		prev = ni

		left, right := &s.nodes[nd.left], &s.nodes[nd.right]
		switch {
		case inside && left.bounds.ContainsPoint(p):
			ni = nd.left
		case inside:
			ni = nd.right
		case left.dataBounds.Distance2(p) < right.dataBounds.Distance2(p):
			ni = nd.left
		default:
			ni = nd.right
		}
	}

	if s.nodes[ni].numberOfPoints < n {
		return prev
	}
	return ni
}

// Package bsp describes the shape of a k-d tree independently of the data it
// was built from, and answers which of its regions intersect a shape.
package bsp

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeNoCuts            = "bsp-no-cuts"
	ErrTypeInvalidCuts       = "bsp-invalid-cuts"
	ErrTypeRegionOutOfRange  = "bsp-region-out-of-range"
	defaultEqualityTolerance = 1e-9
)

// Node is a node of a cut tree. Leaves have negative Left and Right.
type Node struct {
	Bounds         geometry.Bounds `json:"bounds"`
	DataBounds     geometry.Bounds `json:"data_bounds"`
	Dim            geometry.Axis   `json:"dim"`
	Coord          float64         `json:"coord"`
	NumberOfPoints int             `json:"number_of_points"`
	Left           int             `json:"left"`
	Right          int             `json:"right"`
}

func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// Cuts is an immutable description of the cuts of a k-d tree. Nodes are
// stored in depth first order with the root at index 0.
type Cuts struct {
	nodes     []Node
	regions   []int
	regionIDs []int
	minIDs    []int
	maxIDs    []int
}

// NewCuts validates the given nodes and returns the cuts they describe.
// Node 0 is the root. The bounds of children are derived from their parent
// and cut so that they exactly partition it.
func NewCuts(nodes []Node) (*Cuts, error) {
	if len(nodes) == 0 {
		return nil, errors.New("no cuts").WithType(ErrTypeNoCuts)
	}

	c := &Cuts{
		nodes: make([]Node, 0, len(nodes)),
	}

	visited := make([]bool, len(nodes))
	if _, err := c.add(nodes, 0, nodes[0].Bounds, visited); err != nil {
		return nil, err
	}

	if len(c.nodes) != len(nodes) {
		return nil, errors.New("unreachable nodes in cut tree").
			WithType(ErrTypeInvalidCuts).
			WithTag("nodes", len(nodes)).
			WithTag("reachable", len(c.nodes))
	}

	c.number()
	return c, nil
}

func (c *Cuts) add(nodes []Node, i int, bounds geometry.Bounds, visited []bool) (int, error) {
	if i < 0 || i >= len(nodes) {
		return -1, errors.New("node index out of range").
			WithType(ErrTypeInvalidCuts).
			WithTag("index", i)
	}
	if visited[i] {
		return -1, errors.New("node referenced twice").
			WithType(ErrTypeInvalidCuts).
			WithTag("index", i)
	}
	visited[i] = true

	n := nodes[i]
	n.Bounds = bounds
	if n.DataBounds == (geometry.Bounds{}) {
		n.DataBounds = bounds
	}

	idx := len(c.nodes)
	c.nodes = append(c.nodes, n)

	if n.Left < 0 && n.Right < 0 {
		c.nodes[idx].Dim = geometry.AxisNone
		c.nodes[idx].Left, c.nodes[idx].Right = -1, -1
		return idx, nil
	}

	if n.Left < 0 || n.Right < 0 {
		return -1, errors.New("node must have zero or two children").
			WithType(ErrTypeInvalidCuts).
			WithTag("index", i)
	}

	if !n.Dim.Valid() {
		return -1, errors.New("invalid cut dimension").
			WithType(ErrTypeInvalidCuts).
			WithTag("index", i).
			WithTag("dim", int(n.Dim))
	}

	if !(bounds.Lo(n.Dim) < n.Coord && n.Coord < bounds.Hi(n.Dim)) {
		return -1, errors.New("cut outside of node bounds").
			WithType(ErrTypeInvalidCuts).
			WithTag("index", i).
			WithTag("coord", n.Coord)
	}

	lower, upper := bounds.Split(n.Dim, n.Coord)

	left, err := c.add(nodes, n.Left, lower, visited)
	if err != nil {
		return -1, err
	}

	right, err := c.add(nodes, n.Right, upper, visited)
	if err != nil {
		return -1, err
	}

	c.nodes[idx].Left = left
	c.nodes[idx].Right = right
	return idx, nil
}

func (c *Cuts) number() {
	c.regionIDs = make([]int, len(c.nodes))
	c.minIDs = make([]int, len(c.nodes))
	c.maxIDs = make([]int, len(c.nodes))
	c.regions = c.regions[:0]

	var walk func(i int)
	walk = func(i int) {
		n := c.nodes[i]
		if n.IsLeaf() {
			id := len(c.regions)
			c.regions = append(c.regions, i)
			c.regionIDs[i] = id
			c.minIDs[i], c.maxIDs[i] = id, id
			return
		}

		walk(n.Left)
		walk(n.Right)
		c.regionIDs[i] = -1
		c.minIDs[i] = c.minIDs[n.Left]
		c.maxIDs[i] = c.maxIDs[n.Right]
	}
	walk(0)
}

// NumberOfCuts returns the number of internal nodes.
func (c *Cuts) NumberOfCuts() int {
	return len(c.nodes) - len(c.regions)
}

func (c *Cuts) NumberOfRegions() int {
	return len(c.regions)
}

// NumberOfNodes returns the number of nodes, leaves included.
func (c *Cuts) NumberOfNodes() int {
	return len(c.nodes)
}

// Bounds returns the bounds of the whole space.
func (c *Cuts) Bounds() geometry.Bounds {
	return c.nodes[0].Bounds
}

// Node returns the node at the given depth first index.
func (c *Cuts) Node(i int) Node {
	return c.nodes[i]
}

// Nodes returns a copy of the nodes in depth first order.
func (c *Cuts) Nodes() []Node {
	return append([]Node(nil), c.nodes...)
}

// RegionNode returns the node index of a region.
func (c *Cuts) RegionNode(region int) (int, error) {
	if region < 0 || region >= len(c.regions) {
		return -1, errors.New("region id out of range").
			WithType(ErrTypeRegionOutOfRange).
			WithTag("region", region).
			WithTag("regions", len(c.regions))
	}
	return c.regions[region], nil
}

// RegionRange returns the ids of the first and last regions under a node.
func (c *Cuts) RegionRange(node int) (minID, maxID int) {
	return c.minIDs[node], c.maxIDs[node]
}

// RegionID returns the region id of a leaf node, -1 for internal nodes.
func (c *Cuts) RegionID(node int) int {
	return c.regionIDs[node]
}

func (c *Cuts) RegionBounds(region int) (geometry.Bounds, error) {
	i, err := c.RegionNode(region)
	if err != nil {
		return geometry.Bounds{}, err
	}
	return c.nodes[i].Bounds, nil
}

func (c *Cuts) RegionDataBounds(region int) (geometry.Bounds, error) {
	i, err := c.RegionNode(region)
	if err != nil {
		return geometry.Bounds{}, err
	}
	return c.nodes[i].DataBounds, nil
}

// Equals reports whether both cut trees have the same topology and the same
// cuts within the given tolerance. Point counts and data bounds are ignored.
func (c *Cuts) Equals(o *Cuts, tolerance float64) bool {
	if c == nil || o == nil {
		return c == o
	}
	if len(c.nodes) != len(o.nodes) {
		return false
	}
	if tolerance <= 0 {
		tolerance = defaultEqualityTolerance
	}

	for i, n := range c.nodes {
		m := o.nodes[i]
		if n.Left != m.Left || n.Right != m.Right || n.Dim != m.Dim {
			return false
		}
		if !n.IsLeaf() && !geometry.EqualWithEpsilon(n.Coord, m.Coord, tolerance) {
			return false
		}
		if !n.Bounds.Equal(m.Bounds, tolerance) {
			return false
		}
	}
	return true
}

type cutsJSON struct {
	Regions int    `json:"regions"`
	Nodes   []Node `json:"nodes"`
}

func (c *Cuts) MarshalJSON() ([]byte, error) {
	return json.Marshal(cutsJSON{
		Regions: len(c.regions),
		Nodes:   c.nodes,
	})
}

func (c *Cuts) UnmarshalJSON(b []byte) error {
	var v cutsJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.New("decoding cuts failed").
			WithType(ErrTypeInvalidCuts).
			Wrap(err)
	}

	cuts, err := NewCuts(v.Nodes)
	if err != nil {
		return err
	}

	*c = *cuts
	return nil
}

package kdtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/bsp"
	"github.com/aukilabs/kdlocator/dataset"
	"github.com/aukilabs/kdlocator/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode tells what a tree was built from.
type Mode string

const (
	CellMode  Mode = "cells"
	PointMode Mode = "points"
)

// Node is a snapshot of a tree node. Leaves are the regions of the tree and
// have an ID; internal nodes have an ID of -1. MinID and MaxID are the ids
// of the first and last regions under the node.
type Node struct {
	Bounds         geometry.Bounds `json:"bounds"`
	DataBounds     geometry.Bounds `json:"data_bounds"`
	Dim            geometry.Axis   `json:"dim"`
	Coord          float64         `json:"coord"`
	NumberOfPoints int             `json:"number_of_points"`
	ID             int             `json:"id"`
	MinID          int             `json:"min_id"`
	MaxID          int             `json:"max_id"`
	Level          int             `json:"level"`
}

func (n Node) IsLeaf() bool {
	return n.ID >= 0
}

// RegionIDs returns the ids of the regions under the node.
func (n Node) RegionIDs() []int {
	ids := make([]int, 0, n.MaxID-n.MinID+1)
	for id := n.MinID; id <= n.MaxID; id++ {
		ids = append(ids, id)
	}
	return ids
}

type node struct {
	bounds         geometry.Bounds
	dataBounds     geometry.Bounds
	dim            geometry.Axis
	coord          float64
	numberOfPoints int
	id             int
	minID          int
	maxID          int
	level          int
	left           int
	right          int
}

func newLeaf(bounds, dataBounds geometry.Bounds, numberOfPoints int) node {
	return node{
		bounds:         bounds,
		dataBounds:     dataBounds,
		dim:            geometry.AxisNone,
		numberOfPoints: numberOfPoints,
		id:             -1,
		left:           -1,
		right:          -1,
	}
}

func (n *node) isLeaf() bool {
	return n.left < 0
}

func (n *node) snapshot() Node {
	return Node{
		Bounds:         n.bounds,
		DataBounds:     n.dataBounds,
		Dim:            n.dim,
		Coord:          n.coord,
		NumberOfPoints: n.numberOfPoints,
		ID:             n.id,
		MinID:          n.minID,
		MaxID:          n.maxID,
		Level:          n.level,
	}
}

// state is everything a build produces. It is never modified once the build
// that created it has completed.
type state struct {
	mode        Mode
	nodes       []node
	regions     []int
	level       int
	maxWidth    float64
	fudgeFactor float64

	sets        []dataset.DataSet
	cellOffsets []int
	cellRegions []int

	points        []float32
	pointIDs      []int
	pointIndex    []int
	regionOffsets []int

	cuts              *bsp.Cuts
	intersections     *bsp.Intersections
	dataIntersections *bsp.Intersections
}

// split turns a leaf into an internal node with two new leaves.
func (s *state) split(ni int, dim geometry.Axis, coord float64, left, right node) {
	s.nodes = append(s.nodes, left, right)
	n := &s.nodes[ni]
	n.dim = dim
	n.coord = coord
	n.left = len(s.nodes) - 2
	n.right = len(s.nodes) - 1
}

// number assigns region ids to the leaves in depth first order and records
// the region range and level of every node.
func (s *state) number() {
	s.regions = s.regions[:0]
	s.level = 0

	var walk func(ni, level int)
	walk = func(ni, level int) {
		n := &s.nodes[ni]
		n.level = level
		s.level = max(s.level, level)

		if n.isLeaf() {
			n.id = len(s.regions)
			n.minID, n.maxID = n.id, n.id
			s.regions = append(s.regions, ni)
			return
		}

		walk(n.left, level+1)
		walk(n.right, level+1)
		n.id = -1
		n.minID = s.nodes[n.left].minID
		n.maxID = s.nodes[n.right].maxID
	}
	walk(0, 0)

	s.regionOffsets = make([]int, len(s.regions)+1)
	for id, ni := range s.regions {
		s.regionOffsets[id+1] = s.regionOffsets[id] + s.nodes[ni].numberOfPoints
	}
}

// finish exports the cuts of the built tree.
func (s *state) finish() error {
	nodes := make([]bsp.Node, len(s.nodes))
	for i, n := range s.nodes {
		nodes[i] = bsp.Node{
			Bounds:         n.bounds,
			DataBounds:     n.dataBounds,
			Dim:            n.dim,
			Coord:          n.coord,
			NumberOfPoints: n.numberOfPoints,
			Left:           n.left,
			Right:          n.right,
		}
	}

	cuts, err := bsp.NewCuts(nodes)
	if err != nil {
		return errors.New("exporting cuts failed").
			WithType(ErrTypeInvalidArgument).
			Wrap(err)
	}

	s.cuts = cuts
	s.intersections = bsp.NewIntersections(cuts)
	s.dataIntersections = s.intersections.WithDataBounds(true)
	return nil
}

func (s *state) root() *node {
	return &s.nodes[0]
}

func (s *state) region(id int) *node {
	return &s.nodes[s.regions[id]]
}

func (s *state) checkRegion(id int) error {
	if id < 0 || id >= len(s.regions) {
		return errors.New("region id out of range").
			WithType(ErrTypeRegionOutOfRange).
			WithTag("region", id).
			WithTag("regions", len(s.regions))
	}
	return nil
}

// regionContaining descends the tree to the region holding p, or returns -1
// when p is outside the tree.
func (s *state) regionContaining(p r3.Vec) int {
	if !s.root().bounds.ContainsPoint(p) {
		return -1
	}

	ni := 0
	for {
		n := &s.nodes[ni]
		if n.isLeaf() {
			return n.id
		}
		if geometry.Coord(p, n.dim) < n.coord {
			ni = n.left
		} else {
			ni = n.right
		}
	}
}

// preorder calls fn for each node index, parents before children and left
// subtrees before right ones.
func (s *state) preorder(fn func(ni int)) {
	var walk func(ni int)
	walk = func(ni int) {
		fn(ni)
		if n := &s.nodes[ni]; !n.isLeaf() {
			walk(n.left)
			walk(n.right)
		}
	}
	walk(0)
}

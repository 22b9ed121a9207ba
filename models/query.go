package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kdlocator/geometry"
	"github.com/aukilabs/kdlocator/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	ErrTypeInvalidQuery = "invalid-query"
)

type QueryType string

const (
	QueryClosest   QueryType = "closest"
	QueryClosestN  QueryType = "closest_n"
	QueryRadius    QueryType = "radius"
	QueryArea      QueryType = "area"
	QueryRegion    QueryType = "region"
	QueryViewOrder QueryType = "view_order"
)

// Vec is a point or a direction as sent over the wire.
type Vec [3]float64

func VecOf(v r3.Vec) Vec {
	return Vec{v.X, v.Y, v.Z}
}

func (v Vec) R3() r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// Query is a question asked to an index.
//
// closest returns the closest point, only within Radius when it is
// positive. closest_n returns the N closest points. radius returns the
// points within Radius of Point and area the points inside Min and Max.
// region returns the region containing Point. view_order orders Regions, or
// all regions, for a viewer at Position or looking along Direction.
type Query struct {
	Type      QueryType `json:"type"`
	RequestID uint32    `json:"request_id,omitempty"`
	IndexID   string    `json:"index_id"`
	Point     Vec       `json:"point"`
	N         int       `json:"n,omitempty"`
	Radius    float64   `json:"radius,omitempty"`
	Min       Vec       `json:"min"`
	Max       Vec       `json:"max"`
	Direction *Vec      `json:"direction,omitempty"`
	Position  *Vec      `json:"position,omitempty"`
	Regions   []int     `json:"regions,omitempty"`
}

type Result struct {
	Type       QueryType        `json:"type"`
	RequestID  uint32           `json:"request_id,omitempty"`
	IndexID    string           `json:"index_id"`
	IDs        []int            `json:"ids"`
	Distance2  float64          `json:"distance2,omitempty"`
	Region     int              `json:"region"`
	Bounds     *geometry.Bounds `json:"bounds,omitempty"`
	DataBounds *geometry.Bounds `json:"data_bounds,omitempty"`
}

// Query runs a query against the index it names.
func (s *IndexStore) Query(q Query) (Result, error) {
	idx, err := s.Get(q.IndexID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = idx.Read(func(tree *kdtree.Tree) error {
		var qerr error
		res, qerr = runQuery(tree, q)
		return qerr
	})
	return res, err
}

func runQuery(tree *kdtree.Tree, q Query) (Result, error) {
	res := Result{
		Type:      q.Type,
		RequestID: q.RequestID,
		IndexID:   q.IndexID,
		Region:    -1,
	}

	var err error
	switch q.Type {
	case QueryClosest:
		var id int
		if q.Radius > 0 {
			id, res.Distance2, err = tree.FindClosestPointWithinRadius(q.Radius, q.Point.R3())
		} else {
			id, res.Distance2, err = tree.FindClosestPoint(q.Point.R3())
		}
		if id >= 0 {
			res.IDs = []int{id}
		}

	case QueryClosestN:
		res.IDs, err = tree.FindClosestNPoints(q.N, q.Point.R3())

	case QueryRadius:
		res.IDs, err = tree.FindPointsWithinRadius(q.Radius, q.Point.R3())

	case QueryArea:
		res.IDs, err = tree.FindPointsInArea(geometry.BoundsOf(q.Min.R3(), q.Max.R3()))

	case QueryRegion:
		res.Region, err = tree.RegionContainingPoint(q.Point.R3())
		if err == nil && res.Region >= 0 {
			bounds, _ := tree.RegionBounds(res.Region)
			dataBounds, _ := tree.RegionDataBounds(res.Region)
			res.Bounds, res.DataBounds = &bounds, &dataBounds
		}

	case QueryViewOrder:
		switch {
		case q.Position != nil:
			res.IDs, err = tree.ViewOrderRegionsFromPosition(q.Regions, q.Position.R3())
		case q.Direction != nil:
			res.IDs, err = tree.ViewOrderRegionsInDirection(q.Regions, q.Direction.R3())
		default:
			err = errors.New("view order needs a position or a direction").
				WithType(ErrTypeInvalidQuery)
		}

	default:
		err = errors.New("unknown query type").
			WithType(ErrTypeInvalidQuery).
			WithTag("query_type", q.Type)
	}

	if err != nil {
		return Result{}, err
	}
	if res.IDs == nil {
		res.IDs = []int{}
	}
	return res, nil
}

package geometry

import "gonum.org/v1/gonum/spatial/r3"

// Axis identifies one of the three coordinate axes.
type Axis int

const (
	X Axis = iota
	Y
	Z

	// AxisNone marks a node that is not cut.
	AxisNone Axis = -1
)

// Axes lists the coordinate axes in X, Y, Z order.
var Axes = [3]Axis{X, Y, Z}

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return "none"
	}
}

// Valid reports whether a is X, Y or Z.
func (a Axis) Valid() bool {
	return a >= X && a <= Z
}

// Coord returns the component of v along the given axis.
func Coord(v r3.Vec, a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	default:
		return v.Z
	}
}

// WithCoord returns a copy of v whose component along the given axis is c.
func WithCoord(v r3.Vec, a Axis, c float64) r3.Vec {
	switch a {
	case X:
		v.X = c
	case Y:
		v.Y = c
	default:
		v.Z = c
	}
	return v
}

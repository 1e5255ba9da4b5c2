package model

import "math"

// Vector is a world-space position. Y is the vertical axis.
// Value type, passed by value.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Forward is the world forward axis (+Z).
var Forward = Vector{X: 0, Y: 0, Z: 1}

// NewVector creates a Vector with the given coordinates.
func NewVector(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

// Add returns v+o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale returns v multiplied by k.
func (v Vector) Scale(k float64) Vector {
	return Vector{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// WithY returns a copy of v with the vertical coordinate replaced (immutable pattern).
func (v Vector) WithY(y float64) Vector {
	v.Y = y
	return v
}

// DistanceSquared returns the squared distance to another point (no sqrt).
func (v Vector) DistanceSquared(o Vector) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

// Distance2D returns the horizontal (XZ plane) distance to another point.
func (v Vector) Distance2D(o Vector) float64 {
	dx := v.X - o.X
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dz*dz)
}

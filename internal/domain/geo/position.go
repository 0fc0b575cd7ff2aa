package geo

import "math"

// Position is a point on the tracking map, normalized to percentages (0..100) of the map area.
// It represents relative progress toward the pickup, not real coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Toward moves the position toward target by at most step on each axis, never overshooting.
func (position Position) Toward(target Position, step float64) Position {
	return Position{
		X: approach(position.X, target.X, step),
		Y: approach(position.Y, target.Y, step),
	}
}

// Reached reports whether position has arrived at target on both axes.
func (position Position) Reached(target Position) bool {
	return position.X == target.X && position.Y == target.Y
}

// Clamp limits both axes to the 0..100 map area.
func (position Position) Clamp() Position {
	return Position{
		X: math.Max(0, math.Min(100, position.X)),
		Y: math.Max(0, math.Min(100, position.Y)),
	}
}

func approach(current, target, step float64) float64 {
	switch {
	case current < target:
		return math.Min(current+step, target)
	case current > target:
		return math.Max(current-step, target)
	default:
		return current
	}
}

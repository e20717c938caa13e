package main

import "math"

// Rect is an axis-aligned rectangle given by its center and full size.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// CircleIntersectsRect clamps the circle center to the rectangle bounds and
// compares the squared distance to the clamp point against r².
func CircleIntersectsRect(px, py, r float64, rect Rect) bool {
	halfW := rect.Width / 2
	halfH := rect.Height / 2
	cx := Clamp(px, rect.X-halfW, rect.X+halfW)
	cy := Clamp(py, rect.Y-halfH, rect.Y+halfH)
	dx := px - cx
	dy := py - cy
	return dx*dx+dy*dy < r*r
}

// Distance returns the Euclidean distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// CheckCollision checks if two circles overlap
func CheckCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	return Distance(x1, y1, x2, y2) < r1+r2
}

// Touching reports contact with the forgiving pickup margin applied:
// distance < r1 + r2 - ContactMargin.
func Touching(x1, y1, r1, x2, y2, r2 float64) bool {
	return Distance(x1, y1, x2, y2) < r1+r2-ContactMargin
}

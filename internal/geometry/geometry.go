package geometry

import "math"

// Point is a position in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Cross returns the z component of p × q.
func (p Point) Cross(q Point) float64 {
	return p.X*q.Y - p.Y*q.X
}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Segment is a directed line segment from A to B.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// DistancePointToSegment returns the Euclidean distance from p to the closest
// point of segment a-b. When a == b it is the distance between p and a.
func DistancePointToSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return p.Sub(a).Norm()
	}

	t := p.Sub(a).Dot(ab) / lenSq
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}

	closest := Point{X: a.X + t*ab.X, Y: a.Y + t*ab.Y}
	return p.Sub(closest).Norm()
}

// SideOfLine reports on which side of the directed line a→b the point p lies.
// Only the sign is meaningful: for a line drawn left to right in image
// coordinates (y grows downwards), points above the line are positive and
// points below are negative. Zero means p is on the line.
func SideOfLine(p, a, b Point) float64 {
	return p.Sub(a).Cross(b.Sub(a))
}

// Sign returns -1, 0 or 1.
func Sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

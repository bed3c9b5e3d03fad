package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistancePointToSegment(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 100, Y: 0}

	tests := []struct {
		name string
		p    Point
		want float64
	}{
		{"perpendicular above", Point{X: 50, Y: -5}, 5},
		{"perpendicular below", Point{X: 50, Y: 20}, 20},
		{"on segment", Point{X: 30, Y: 0}, 0},
		{"beyond b", Point{X: 103, Y: 4}, 5},
		{"before a", Point{X: -6, Y: -8}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DistancePointToSegment(tt.p, a, b), 1e-9)
		})
	}
}

func TestDistancePointToSegmentDegenerate(t *testing.T) {
	a := Point{X: 3, Y: 3}
	assert.InDelta(t, 5.0, DistancePointToSegment(Point{X: 6, Y: 7}, a, a), 1e-9)
}

func TestSideOfLine(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 100, Y: 0}

	assert.Equal(t, 1, Sign(SideOfLine(Point{X: 50, Y: -5}, a, b)))
	assert.Equal(t, -1, Sign(SideOfLine(Point{X: 50, Y: 5}, a, b)))
	assert.Equal(t, 0, Sign(SideOfLine(Point{X: 500, Y: 0}, a, b)))

	// reversing the endpoints flips the sign
	assert.Equal(t, -1, Sign(SideOfLine(Point{X: 50, Y: -5}, b, a)))
}

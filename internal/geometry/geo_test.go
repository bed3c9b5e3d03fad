package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{name: "same point", lat1: 55.75, lon1: 37.62, lat2: 55.75, lon2: 37.62, want: 0, delta: 1e-9},
		{name: "one degree of latitude", lat1: 0, lon1: 0, lat2: 1, lon2: 0, want: 111.195, delta: 0.01},
		{name: "one degree of longitude at the equator", lat1: 0, lon1: 10, lat2: 0, lon2: 11, want: 111.195, delta: 0.01},
		{name: "antipodes", lat1: 0, lon1: 0, lat2: 0, lon2: 180, want: 20015.09, delta: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.delta)
		})
	}
}

func TestHaversineKmIsSymmetric(t *testing.T) {
	ab := HaversineKm(48.8566, 2.3522, 51.5074, -0.1278)
	ba := HaversineKm(51.5074, -0.1278, 48.8566, 2.3522)

	assert.InDelta(t, ab, ba, 1e-9)
	assert.InDelta(t, 343.5, ab, 1)
}

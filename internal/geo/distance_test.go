package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hopoff/tripwatch/internal/domain"
	"github.com/hopoff/tripwatch/internal/geo"
)

func TestHaversineKm_ZeroAtSamePoint(t *testing.T) {
	points := []domain.Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 51.5074, Longitude: -0.1278},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 90, Longitude: 0},
		{Latitude: -90, Longitude: 180},
	}
	for _, p := range points {
		assert.InDelta(t, 0, geo.HaversineKm(p, p), 1e-9, "d(a,a) must be zero for %+v", p)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := domain.Coordinate{Latitude: 48.8566, Longitude: 2.3522}   // Paris
	b := domain.Coordinate{Latitude: 40.7128, Longitude: -74.0060} // New York

	assert.Equal(t, geo.HaversineKm(a, b), geo.HaversineKm(b, a))
}

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name   string
		a, b   domain.Coordinate
		wantKm float64
	}{
		{
			name:   "London to Paris",
			a:      domain.Coordinate{Latitude: 51.5074, Longitude: -0.1278},
			b:      domain.Coordinate{Latitude: 48.8566, Longitude: 2.3522},
			wantKm: 343.5,
		},
		{
			name:   "one degree of latitude at the equator",
			a:      domain.Coordinate{Latitude: 0, Longitude: 0},
			b:      domain.Coordinate{Latitude: 1, Longitude: 0},
			wantKm: 111.19,
		},
		{
			name:   "antipodal points are half the circumference",
			a:      domain.Coordinate{Latitude: 0, Longitude: 0},
			b:      domain.Coordinate{Latitude: 0, Longitude: 180},
			wantKm: 20015.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantKm, geo.HaversineKm(tt.a, tt.b), 1.0)
		})
	}
}

func TestHaversineKm_MonotonicWithSeparation(t *testing.T) {
	origin := domain.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

	prev := 0.0
	for _, dLat := range []float64{0.01, 0.05, 0.1, 0.5, 1, 5} {
		d := geo.HaversineKm(origin, domain.Coordinate{
			Latitude:  origin.Latitude + dLat,
			Longitude: origin.Longitude,
		})
		assert.Greater(t, d, prev, "distance must grow with angular separation")
		prev = d
	}
}

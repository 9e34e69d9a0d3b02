package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// NoDistance stands in for the distance to a reading that does not exist.
var NoDistance = math.Inf(1)

// Distance returns the great-circle distance between two coordinates in meters.
func Distance(a, b Coordinate) float64 {
	return geo.Distance(a.point(), b.point())
}

// point converts to orb's [lon, lat] ordering.
func (c Coordinate) point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

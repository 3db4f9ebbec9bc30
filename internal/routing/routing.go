// Package routing estimates drive distance and time between two coordinates.
//
// There is no road graph: distances are great-circle distances scaled by a
// fixed detour factor, and the route geometry is a straight polyline used by
// clients to animate the vehicle.
package routing

import (
	"math"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

const (
	EarthRadiusMeters = 6371000.0
	// RoadFactor converts a straight-line distance into an approximate road distance.
	RoadFactor      = 1.3
	DefaultSpeedKMH = 50.0
	MinDuration     = 10 * time.Second

	routeSegments = 16
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Haversine returns the great-circle distance in metres.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Estimate is a road distance and travel time.
type Estimate struct {
	DistanceMeters  float64 `json:"distance_m"`
	DurationSeconds float64 `json:"duration_s"`
}

// Duration returns the estimate as a time.Duration.
func (e Estimate) Duration() time.Duration {
	return time.Duration(e.DurationSeconds * float64(time.Second))
}

// EstimateTrip returns the road distance and travel time at speedKMH.
// A non-positive speed falls back to DefaultSpeedKMH.
func EstimateTrip(from, to Point, speedKMH float64) Estimate {
	if speedKMH <= 0 {
		speedKMH = DefaultSpeedKMH
	}
	distance := Haversine(from, to) * RoadFactor
	seconds := distance / (speedKMH / 3.6)
	if seconds < MinDuration.Seconds() {
		seconds = MinDuration.Seconds()
	}
	return Estimate{DistanceMeters: distance, DurationSeconds: seconds}
}

// Route is a planned leg with its geometry.
type Route struct {
	From Point
	To   Point
	Estimate
	line geom.LineString
}

// Plan builds the route from one point to another.
func Plan(from, to Point, speedKMH float64) Route {
	coords := make([]float64, 0, (routeSegments+1)*2)
	for i := 0; i <= routeSegments; i++ {
		f := float64(i) / routeSegments
		coords = append(coords, from.Lon+(to.Lon-from.Lon)*f, from.Lat+(to.Lat-from.Lat)*f)
	}
	return Route{
		From:     from,
		To:       to,
		Estimate: EstimateTrip(from, to, speedKMH),
		line:     geom.NewLineString(geom.NewSequence(coords, geom.DimXY)),
	}
}

// GeoJSON encodes the route as a GeoJSON LineString.
func (r Route) GeoJSON() (string, error) {
	raw, err := r.line.AsGeometry().MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// PositionAt returns the point at the given travelled fraction, clamped to [0,1].
func (r Route) PositionAt(fraction float64) Point {
	switch {
	case fraction <= 0:
		return r.From
	case fraction >= 1:
		return r.To
	}
	xy, ok := r.line.InterpolatePoint(fraction).XY()
	if !ok {
		return r.From
	}
	return Point{Lat: xy.Y, Lon: xy.X}
}

// Offset moves origin by east/north metres. The shift is applied in Web
// Mercator, scaled so the distances are true ground metres near origin.
func Offset(origin Point, eastMeters, northMeters float64) Point {
	epsg := wgs84.EPSG()
	toMercator := epsg.Transform(4326, 3857)
	fromMercator := epsg.Transform(3857, 4326)

	scale := 1 / math.Cos(origin.Lat*math.Pi/180)
	x, y, _ := toMercator(origin.Lon, origin.Lat, 0)
	lon, lat, _ := fromMercator(x+eastMeters*scale, y+northMeters*scale, 0)
	return Point{Lat: lat, Lon: lon}
}

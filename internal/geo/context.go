// Package geo resolves geographic context for a coordinate pair against a
// fixed table of Sri Lankan reference hubs.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// earthRadiusKm is the mean Earth radius used for haversine distances.
const earthRadiusKm = 6371.0

// Hub is a fixed reference point used for distance-based scoring.
type Hub struct {
	Name    string
	Coord   geom.Coord // {lon, lat}
	Coastal bool
	Tourism bool
}

// Hubs is the reference table. Colombo is the capital and must stay the
// first entry: the price engine's distance-decay bonus anchors on it.
var Hubs = []Hub{
	{Name: "Colombo", Coord: geom.Coord{79.8612, 6.9271}},
	{Name: "Kandy", Coord: geom.Coord{80.6337, 7.2906}, Tourism: true},
	{Name: "Galle", Coord: geom.Coord{80.2210, 6.0535}, Coastal: true, Tourism: true},
	{Name: "Negombo", Coord: geom.Coord{79.8358, 7.2008}, Coastal: true, Tourism: true},
	{Name: "Jaffna", Coord: geom.Coord{80.0070, 9.6615}},
	{Name: "Trincomalee", Coord: geom.Coord{81.2335, 8.5874}, Coastal: true, Tourism: true},
	{Name: "Matara", Coord: geom.Coord{80.5353, 5.9549}, Coastal: true},
	{Name: "Nuwara Eliya", Coord: geom.Coord{80.7891, 6.9497}, Tourism: true},
}

// Options holds the qualitative-flag thresholds. Zero values are replaced
// with defaults by Resolve.
type Options struct {
	CoastalThresholdKm float64
	TourismThresholdKm float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		CoastalThresholdKm: 15,
		TourismThresholdKm: 30,
	}
}

// Context is the derived, request-scoped geographic context. The zero
// value (Valid=false) means coordinates were absent or unusable.
type Context struct {
	Valid        bool
	HubDistances map[string]float64 // km to every hub
	NearestHub   string
	NearestKm    float64
	CapitalKm    float64 // distance to Colombo
	Coastal      bool
	TourismScore int // tourism hubs within the tourism threshold
}

// Resolve computes the context for a coordinate pair. Either pointer
// being nil or out of range yields an empty context; it never fails.
func Resolve(lat, lon *float64, opts Options) Context {
	if lat == nil || lon == nil {
		return Context{}
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return Context{}
	}
	if opts.CoastalThresholdKm <= 0 {
		opts.CoastalThresholdKm = DefaultOptions().CoastalThresholdKm
	}
	if opts.TourismThresholdKm <= 0 {
		opts.TourismThresholdKm = DefaultOptions().TourismThresholdKm
	}

	ctx := Context{
		Valid:        true,
		HubDistances: make(map[string]float64, len(Hubs)),
		NearestKm:    math.MaxFloat64,
	}

	for _, hub := range Hubs {
		d := Haversine(*lat, *lon, hub.Coord.Y(), hub.Coord.X())
		ctx.HubDistances[hub.Name] = d

		if d < ctx.NearestKm {
			ctx.NearestKm = d
			ctx.NearestHub = hub.Name
		}
		if hub.Name == Hubs[0].Name {
			ctx.CapitalKm = d
		}
		if hub.Coastal && d < opts.CoastalThresholdKm {
			ctx.Coastal = true
		}
		if hub.Tourism && d < opts.TourismThresholdKm {
			ctx.TourismScore++
		}
	}

	return ctx
}

// Haversine returns the great-circle distance in km between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

package valuation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/pkg/overpass"
)

// maxPerCategory caps each amenity list after distance sorting.
const maxPerCategory = 10

// poiCategories maps a category name to its Overpass node filter.
var poiCategories = map[string]string{
	"hospital":    `node["amenity"="hospital"]`,
	"pharmacy":    `node["amenity"="pharmacy"]`,
	"school":      `node["amenity"="school"]`,
	"university":  `node["amenity"="university"]`,
	"supermarket": `node["shop"="supermarket"]`,
	"safety":      `node["amenity"~"police|fire_station"]`,
	"transit":     `node["highway"="bus_stop"]`,
}

// hazardCategories are the linear/area features the risk scorer bands
// on, mapped to their Overpass way filters.
var hazardCategories = []string{"major_road", "waterway", "railway", "industrial"}

var hazardFilters = map[string]string{
	"major_road": `way["highway"~"motorway|trunk|primary"]`,
	"waterway":   `way["waterway"]`,
	"railway":    `way["railway"="rail"]`,
	"industrial": `way["landuse"="industrial"]`,
}

// NearbyService retrieves categorized amenities and hazard features
// around a coordinate. Sparse areas get exactly one retry at doubled
// radii before the (possibly still empty) result is returned.
type NearbyService struct {
	client        overpass.Client
	poiRadiusM    int
	linearRadiusM int
}

// NewNearbyService builds the service; zero radii take the defaults
// (2000 m for POIs, 3000 m for linear features).
func NewNearbyService(client overpass.Client, poiRadiusM, linearRadiusM int) *NearbyService {
	if poiRadiusM <= 0 {
		poiRadiusM = 2000
	}
	if linearRadiusM <= 0 {
		linearRadiusM = 3000
	}
	return &NearbyService{client: client, poiRadiusM: poiRadiusM, linearRadiusM: linearRadiusM}
}

// Nearby queries all categories around (lat, lon). Transport failures
// yield empty category lists, never an error to the caller.
func (s *NearbyService) Nearby(ctx context.Context, lat, lon float64) *model.NearbyAmenities {
	result := s.query(ctx, lat, lon, s.poiRadiusM, s.linearRadiusM)
	if countAmenities(result) > 0 {
		return result
	}

	// Sparse area: one retry at doubled radii.
	zap.L().Debug("amenities: empty result, retrying at doubled radii",
		zap.Float64("lat", lat), zap.Float64("lon", lon))
	retried := s.query(ctx, lat, lon, s.poiRadiusM*2, s.linearRadiusM*2)
	retried.Retried = true
	return retried
}

func (s *NearbyService) query(ctx context.Context, lat, lon float64, poiRadius, linearRadius int) *model.NearbyAmenities {
	result := &model.NearbyAmenities{
		Categories: make(map[string][]model.Amenity),
		RadiusM:    poiRadius,
	}

	elems, err := s.client.Query(ctx, buildQL(lat, lon, poiRadius, linearRadius))
	if err != nil {
		zap.L().Warn("amenities: overpass query failed", zap.Error(err))
		return result
	}

	for _, el := range elems {
		cat := classify(el)
		if cat == "" {
			continue
		}
		elat, elon, ok := el.Position()
		if !ok {
			continue
		}
		result.Categories[cat] = append(result.Categories[cat], model.Amenity{
			Name:       amenityName(el, cat),
			Category:   cat,
			DistanceKm: round2(geo.Haversine(lat, lon, elat, elon)),
		})
	}

	for cat, list := range result.Categories {
		sort.Slice(list, func(i, j int) bool { return list[i].DistanceKm < list[j].DistanceKm })
		if len(list) > maxPerCategory {
			list = list[:maxPerCategory]
		}
		result.Categories[cat] = list
	}
	return result
}

// buildQL assembles one Overpass QL document covering every category.
func buildQL(lat, lon float64, poiRadius, linearRadius int) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:20];\n(\n")
	for _, filter := range poiCategories {
		fmt.Fprintf(&b, "  %s(around:%d,%.6f,%.6f);\n", filter, poiRadius, lat, lon)
	}
	for _, cat := range hazardCategories {
		fmt.Fprintf(&b, "  %s(around:%d,%.6f,%.6f);\n", hazardFilters[cat], linearRadius, lat, lon)
	}
	b.WriteString(");\nout center;\n")
	return b.String()
}

// classify maps an element's tags to a category name, or "" for
// elements the service does not track.
func classify(el overpass.Element) string {
	tags := el.Tags
	switch tags["amenity"] {
	case "hospital":
		return "hospital"
	case "pharmacy":
		return "pharmacy"
	case "school":
		return "school"
	case "university":
		return "university"
	case "police", "fire_station":
		return "safety"
	}
	if tags["shop"] == "supermarket" {
		return "supermarket"
	}
	if tags["highway"] == "bus_stop" || tags["railway"] == "station" {
		return "transit"
	}
	if el.Type == "way" {
		switch tags["highway"] {
		case "motorway", "trunk", "primary":
			return "major_road"
		}
		if tags["waterway"] != "" {
			return "waterway"
		}
		if tags["railway"] == "rail" {
			return "railway"
		}
		if tags["landuse"] == "industrial" {
			return "industrial"
		}
	}
	return ""
}

func amenityName(el overpass.Element, cat string) string {
	if name := el.Tags["name"]; name != "" {
		return name
	}
	return "Unnamed " + strings.ReplaceAll(cat, "_", " ")
}

func countAmenities(n *model.NearbyAmenities) int {
	total := 0
	for _, list := range n.Categories {
		total += len(list)
	}
	return total
}

// Summarize counts amenities per category within radiusKm and renders a
// one-line facility summary.
func Summarize(nearby *model.NearbyAmenities, radiusKm float64) model.FacilitySummary {
	if radiusKm <= 0 {
		radiusKm = 1.0
	}
	counts := make(map[string]int)
	if nearby != nil {
		for cat, list := range nearby.Categories {
			for _, a := range list {
				if a.DistanceKm <= radiusKm {
					counts[cat]++
				}
			}
		}
	}

	var parts []string
	for _, cat := range sortedKeys(counts) {
		label := strings.ReplaceAll(cat, "_", " ")
		if counts[cat] != 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", counts[cat], label))
	}

	if len(parts) == 0 {
		return model.FacilitySummary{
			Counts:  counts,
			Summary: fmt.Sprintf("No major facilities found within %.1f km.", radiusKm),
		}
	}
	return model.FacilitySummary{
		Counts:  counts,
		Summary: fmt.Sprintf("Within %.1f km: %s.", radiusKm, strings.Join(parts, ", ")),
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

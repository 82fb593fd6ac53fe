// Package valuation implements the analysis pipeline: a price engine, a
// location engine, a deal evaluator, hazard and amenity assessment, and
// the orchestrator that blends heuristic and model outputs into one
// result per request.
package valuation

import "github.com/ceylonhomes/valuation-api/internal/model"

// Field groups for completeness-based confidence. Required fields drive
// the bulk of the score; secondary fields add a small bonus.
var (
	requiredFields  = []string{"area", "beds", "baths", "year_built", "city"}
	secondaryFields = []string{"district", "property_type", "land_size"}
)

// Confidence scores input completeness: 0.5 base plus up to 0.4 for
// required fields plus up to 0.1 for secondary fields, clamped to
// [0.1, 0.95]. More complete inputs weight the heuristic estimate more
// heavily against the model's.
func Confidence(f model.Features) float64 {
	present := make(map[string]bool, 11)
	for _, name := range f.Names() {
		present[name] = true
	}

	var required int
	for _, name := range requiredFields {
		if present[name] {
			required++
		}
	}
	var secondary int
	for _, name := range secondaryFields {
		if present[name] {
			secondary++
		}
	}

	c := 0.5 + 0.4*float64(required)/float64(len(requiredFields))
	bonus := 0.02 * float64(secondary)
	if bonus > 0.1 {
		bonus = 0.1
	}
	return clamp(c+bonus, 0.1, 0.95)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

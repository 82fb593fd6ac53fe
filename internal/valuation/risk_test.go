package valuation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

func nearbyWith(cat string, distKm float64) *model.NearbyAmenities {
	return &model.NearbyAmenities{Categories: map[string][]model.Amenity{
		cat: {{Name: "x", Category: cat, DistanceKm: distKm}},
	}}
}

func TestHeuristicRisk_Bands(t *testing.T) {
	tests := []struct {
		name     string
		category string
		distKm   float64
		severity int
	}{
		{"highway on the doorstep", "major_road", 0.1, 4},
		{"highway close", "major_road", 0.4, 3},
		{"highway within a km", "major_road", 0.9, 2},
		{"highway far enough", "major_road", 1.5, 0},
		{"waterway adjacent", "waterway", 0.05, 4},
		{"waterway near", "waterway", 0.2, 3},
		{"waterway moderate", "waterway", 0.6, 2},
		{"railway adjacent", "railway", 0.05, 3},
		{"railway near", "railway", 0.2, 2},
		{"industrial adjacent", "industrial", 0.2, 4},
		{"industrial near", "industrial", 0.6, 3},
		{"industrial moderate", "industrial", 1.2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := heuristicRisk(nearbyWith(tt.category, tt.distKm))
			if tt.severity == 0 {
				assert.Empty(t, r.Factors)
				assert.Equal(t, model.RiskLow, r.Level)
				return
			}
			require.Len(t, r.Factors, 1)
			assert.Equal(t, tt.severity, r.Factors[0].Severity)
		})
	}
}

func TestHeuristicRisk_Aggregation(t *testing.T) {
	// Single severity-4 factor: High by max severity.
	r := heuristicRisk(nearbyWith("major_road", 0.1))
	assert.Equal(t, model.RiskHigh, r.Level)

	// Single severity-3 factor: Medium.
	r = heuristicRisk(nearbyWith("railway", 0.05))
	assert.Equal(t, model.RiskMedium, r.Level)

	// Two severity-2 factors: sum 4 crosses the Medium threshold.
	n := nearbyWith("major_road", 0.9)
	n.Categories["industrial"] = []model.Amenity{{DistanceKm: 1.2}}
	r = heuristicRisk(n)
	assert.Equal(t, model.RiskMedium, r.Level)

	// Severities 3+3+2 sum to 8: High by summed severity.
	n = nearbyWith("major_road", 0.4)
	n.Categories["industrial"] = []model.Amenity{{DistanceKm: 0.6}}
	n.Categories["railway"] = []model.Amenity{{DistanceKm: 0.2}}
	r = heuristicRisk(n)
	assert.Equal(t, model.RiskHigh, r.Level)

	// Single severity-2 factor stays Low.
	r = heuristicRisk(nearbyWith("railway", 0.2))
	assert.Equal(t, model.RiskLow, r.Level)
}

func TestHeuristicRisk_NoHazards(t *testing.T) {
	r := heuristicRisk(nil)
	assert.Equal(t, model.RiskLow, r.Level)
	assert.Empty(t, r.Factors)
	assert.Contains(t, r.Summary, "No notable")

	r = heuristicRisk(&model.NearbyAmenities{Categories: map[string][]model.Amenity{}})
	assert.Equal(t, model.RiskLow, r.Level)
}

func TestRiskAssessor_ModelRefinement(t *testing.T) {
	client := &fakeLLM{response: `{"level": "Medium", "factors": [], "summary": ""}`}
	r := NewRiskAssessor(client)

	got := r.Assess(context.Background(), colomboFeatures(), nearbyWith("major_road", 0.1))
	assert.Equal(t, model.RiskMedium, got.Level)
	// Model omitted factors and summary: the heuristic ones survive.
	require.NotEmpty(t, got.Factors)
	assert.NotEmpty(t, got.Summary)
}

func TestRiskAssessor_FallbackOnModelFailure(t *testing.T) {
	r := NewRiskAssessor(failingLLM())
	got := r.Assess(context.Background(), colomboFeatures(), nearbyWith("major_road", 0.1))
	assert.Equal(t, model.RiskHigh, got.Level)
	assert.NotEmpty(t, got.Factors)
}

func TestRiskAssessor_NilClientHeuristicOnly(t *testing.T) {
	r := NewRiskAssessor(nil)
	got := r.Assess(context.Background(), colomboFeatures(), nearbyWith("waterway", 0.05))
	assert.Equal(t, model.RiskHigh, got.Level)
}

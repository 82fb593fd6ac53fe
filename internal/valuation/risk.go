package valuation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/pkg/llm"
)

// hazardBand maps a distance ceiling to a severity tier. Bands are
// evaluated in order; the first match wins.
type hazardBand struct {
	withinKm float64
	severity int
}

var hazardBands = map[string][]hazardBand{
	"major_road": {{0.2, 4}, {0.5, 3}, {1.0, 2}},
	"waterway":   {{0.1, 4}, {0.3, 3}, {0.8, 2}},
	"railway":    {{0.1, 3}, {0.3, 2}},
	"industrial": {{0.3, 4}, {0.8, 3}, {1.5, 2}},
}

var hazardLabels = map[string]string{
	"major_road": "Major road proximity",
	"waterway":   "Waterway proximity",
	"railway":    "Railway proximity",
	"industrial": "Industrial land proximity",
}

// RiskAssessor bands hazard proximity into an overall Low/Medium/High
// level. The heuristic is always computed; a configured model may only
// restate it, never replace the factor list with nothing.
type RiskAssessor struct {
	llm llm.Client
}

// NewRiskAssessor builds an assessor. A nil client means heuristic-only.
func NewRiskAssessor(client llm.Client) *RiskAssessor {
	return &RiskAssessor{llm: client}
}

// Assess computes the hazard assessment for the nearby-feature set.
func (r *RiskAssessor) Assess(ctx context.Context, f model.Features, nearby *model.NearbyAmenities) model.RiskAssessment {
	heuristic := heuristicRisk(nearby)
	if r.llm == nil {
		return heuristic
	}

	raw, err := r.llm.Generate(ctx, riskPrompt(f, heuristic, nearby))
	if err == nil {
		refined, perr := ParseRiskJSON(raw)
		if perr == nil {
			// The model may drop factors it considers minor; the
			// heuristic list stays authoritative when it does.
			if len(refined.Factors) == 0 {
				refined.Factors = heuristic.Factors
			}
			if refined.Summary == "" {
				refined.Summary = heuristic.Summary
			}
			return *refined
		}
		err = perr
	}
	zap.L().Warn("risk: model refinement failed", zap.Error(err))
	return heuristic
}

// heuristicRisk bands the nearest distance per hazard category into
// severity tiers and aggregates by max and summed severity.
func heuristicRisk(nearby *model.NearbyAmenities) model.RiskAssessment {
	var factors []model.RiskFactor
	maxSev, sumSev := 0, 0

	for _, cat := range hazardCategories {
		d, ok := nearestDistance(nearby, cat)
		if !ok {
			continue
		}
		sev := severityFor(cat, d)
		if sev == 0 {
			continue
		}
		factors = append(factors, model.RiskFactor{
			Name:        hazardLabels[cat],
			Severity:    sev,
			Description: fmt.Sprintf("Nearest %s is %.2f km away.", strings.ReplaceAll(cat, "_", " "), d),
		})
		if sev > maxSev {
			maxSev = sev
		}
		sumSev += sev
	}

	level := model.RiskLow
	switch {
	case maxSev >= 4 || sumSev >= 8:
		level = model.RiskHigh
	case maxSev >= 3 || sumSev >= 4:
		level = model.RiskMedium
	}

	return model.RiskAssessment{
		Level:   level,
		Factors: factors,
		Summary: riskSummary(level, factors),
	}
}

func nearestDistance(nearby *model.NearbyAmenities, cat string) (float64, bool) {
	if nearby == nil {
		return 0, false
	}
	list := nearby.Categories[cat]
	if len(list) == 0 {
		return 0, false
	}
	// Lists are distance-sorted by the nearby service.
	return list[0].DistanceKm, true
}

func severityFor(cat string, distKm float64) int {
	for _, band := range hazardBands[cat] {
		if distKm < band.withinKm {
			return band.severity
		}
	}
	return 0
}

func riskSummary(level model.RiskLevel, factors []model.RiskFactor) string {
	if len(factors) == 0 {
		return "No notable proximity hazards were identified around this property."
	}
	names := make([]string, 0, len(factors))
	for _, f := range factors {
		names = append(names, strings.ToLower(f.Name))
	}
	return fmt.Sprintf("%s risk overall, driven by %s.", level, strings.Join(names, ", "))
}

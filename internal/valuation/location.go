package valuation

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/pkg/llm"
)

// Model and heuristic location scores are blended at fixed weights so a
// small input perturbation cannot swing the final score by more than the
// model weight allows.
const (
	heuristicWeight = 0.6
	modelWeight     = 0.4
)

// LocationEngine scores a location on [0,1] with supporting bullets,
// summary, and provenance. Construct once at startup; safe for
// concurrent use.
type LocationEngine struct {
	llm     llm.Client
	geoOpts geo.Options
	strict  bool
}

// NewLocationEngine builds a location engine. A nil client means
// heuristic-only scoring.
func NewLocationEngine(client llm.Client, opts geo.Options, strict bool) *LocationEngine {
	return &LocationEngine{llm: client, geoOpts: opts, strict: strict}
}

// Analyze scores the location described by the features. It never fails:
// model errors degrade to the heuristic score except in strict mode,
// which returns a zero score with an error bullet.
func (e *LocationEngine) Analyze(ctx context.Context, f model.Features) model.LocationScore {
	gctx := geo.Resolve(f.Lat, f.Lon, e.geoOpts)
	heuristic := e.heuristicScore(f, gctx)

	if e.llm == nil {
		if e.strict {
			return model.LocationScore{
				Score:   0,
				Bullets: []string{"Location analysis unavailable: no model client configured."},
				Summary: "Location could not be scored in strict mode.",
				Error:   "strict mode requires a configured model client",
			}
		}
		return e.heuristicResult(f, gctx, heuristic)
	}

	raw, err := e.llm.Generate(ctx, locationPrompt(f, gctx, heuristic))
	if err == nil {
		parsed, perr := ParseLocationJSON(raw)
		if perr == nil {
			return e.merge(f, gctx, heuristic, parsed)
		}
		err = perr
	}

	zap.L().Warn("location: model path failed", zap.Error(err))
	if e.strict {
		return model.LocationScore{
			Score:   0,
			Bullets: []string{"Location analysis failed: " + err.Error()},
			Summary: "Location could not be scored in strict mode.",
			Error:   err.Error(),
		}
	}
	return e.heuristicResult(f, gctx, heuristic)
}

// heuristicScore starts neutral at 0.5, adds hub-proximity band bonuses,
// and applies a small coordinate-seeded jitter so geometrically close
// but distinct points do not score identically. The variance is
// intentional.
func (e *LocationEngine) heuristicScore(f model.Features, gctx geo.Context) float64 {
	score := 0.5
	if gctx.Valid {
		switch {
		case gctx.CapitalKm < 10:
			score += 0.25
		case gctx.CapitalKm < 25:
			score += 0.15
		case gctx.CapitalKm < 50:
			score += 0.05
		}
		if gctx.NearestKm < 10 {
			score += 0.1
		}
		if gctx.Coastal {
			score += 0.05
		}
		tourism := 0.02 * float64(gctx.TourismScore)
		if tourism > 0.06 {
			tourism = 0.06
		}
		score += tourism
		score += locationJitter(f)
	}
	return clamp(score, 0, 1)
}

// locationJitter draws a deterministic value in [-0.05, 0.05) seeded by
// the rounded coordinates.
func locationJitter(f model.Features) float64 {
	rng := compRNG(f)
	return (rng.Float64() - 0.5) * 0.1
}

func (e *LocationEngine) heuristicResult(f model.Features, gctx geo.Context, score float64) model.LocationScore {
	return model.LocationScore{
		Score:      round2(score),
		Bullets:    heuristicBullets(f, gctx),
		Summary:    bandedSummary(f, score),
		Provenance: baseProvenance(f),
	}
}

// merge blends the model score into the heuristic at fixed weights and
// fills gaps in the model's bullets, summary, and provenance.
func (e *LocationEngine) merge(f model.Features, gctx geo.Context, heuristic float64, parsed *model.LocationScore) model.LocationScore {
	blended := clamp(heuristicWeight*heuristic+modelWeight*parsed.Score, 0, 1)

	bullets := parsed.Bullets
	if len(bullets) < 3 {
		for _, b := range heuristicBullets(f, gctx) {
			if len(bullets) >= 3 {
				break
			}
			bullets = append(bullets, b)
		}
	}
	if len(bullets) > 10 {
		bullets = bullets[:10]
	}

	summary := parsed.Summary
	if summary == "" {
		summary = bandedSummary(f, blended)
	}

	return model.LocationScore{
		Score:      round2(blended),
		Bullets:    bullets,
		Summary:    summary,
		Provenance: append(baseProvenance(f), parsed.Provenance...),
	}
}

func heuristicBullets(f model.Features, gctx geo.Context) []string {
	var bullets []string
	if gctx.Valid {
		bullets = append(bullets,
			fmt.Sprintf("%.1f km from %s, the nearest major city.", gctx.NearestKm, gctx.NearestHub))
		if gctx.NearestHub != "Colombo" {
			bullets = append(bullets,
				fmt.Sprintf("%.1f km from Colombo.", gctx.CapitalKm))
		}
		if gctx.Coastal {
			bullets = append(bullets, "Coastal area with typical premium for sea access.")
		}
		if gctx.TourismScore > 0 {
			bullets = append(bullets,
				fmt.Sprintf("Within reach of %d established tourism hubs.", gctx.TourismScore))
		}
		bullets = append(bullets,
			fmt.Sprintf("Classified as %s relative to the major city network.", geo.Classify(gctx)))
	}
	if f.City != "" {
		bullets = append(bullets, fmt.Sprintf("Located in %s.", f.City))
	}
	if f.District != "" {
		bullets = append(bullets, fmt.Sprintf("%s district.", f.District))
	}
	for len(bullets) < 3 {
		bullets = append(bullets, "Limited location details were provided for this property.")
	}
	return bullets
}

// bandedSummary renders a score-banded template parameterized by place
// and score percentage.
func bandedSummary(f model.Features, score float64) string {
	place := f.City
	if place == "" {
		place = "this location"
	}
	if f.District != "" && f.District != f.City {
		place = place + ", " + f.District
	}
	pct := int(score * 100)

	switch {
	case score >= 0.9:
		return fmt.Sprintf("Excellent location: %s scores %d%%, among the strongest residential positions in the market.", place, pct)
	case score >= 0.8:
		return fmt.Sprintf("Very good location: %s scores %d%% with strong access to urban amenities.", place, pct)
	case score >= 0.7:
		return fmt.Sprintf("Good location: %s scores %d%% and should hold value well.", place, pct)
	case score >= 0.6:
		return fmt.Sprintf("Fair location: %s scores %d%%; convenient but not a premium position.", place, pct)
	default:
		return fmt.Sprintf("%s scores %d%%. Review the risk and amenity sections before committing at this price point.", place, pct)
	}
}

// baseProvenance builds the deterministic attribution entries: city and
// district references, map views for the coordinates, and a general
// market-trends entry. Links are constructed, never fetched.
func baseProvenance(f model.Features) []model.Provenance {
	var entries []model.Provenance
	if f.City != "" {
		entries = append(entries, model.Provenance{
			DocID:      "city_ref",
			Source:     "Wikipedia",
			Snippet:    fmt.Sprintf("Reference article for %s.", f.City),
			Link:       "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(f.City, " ", "_")),
			Confidence: 0.7,
		})
	}
	if f.District != "" {
		entries = append(entries, model.Provenance{
			DocID:      "district_ref",
			Source:     "Web search",
			Snippet:    fmt.Sprintf("District overview for %s.", f.District),
			Link:       "https://www.google.com/search?q=" + url.QueryEscape(f.District+" district Sri Lanka property"),
			Confidence: 0.6,
		})
	}
	if f.HasCoords() {
		entries = append(entries,
			model.Provenance{
				DocID:      "osm_view",
				Source:     "OpenStreetMap",
				Snippet:    "Map view of the property coordinates.",
				Link:       fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.4f&mlon=%.4f#map=15/%.4f/%.4f", *f.Lat, *f.Lon, *f.Lat, *f.Lon),
				Confidence: 0.8,
			},
			model.Provenance{
				DocID:      "maps_view",
				Source:     "Google Maps",
				Snippet:    "Satellite view of the property coordinates.",
				Link:       fmt.Sprintf("https://www.google.com/maps?q=%.4f,%.4f", *f.Lat, *f.Lon),
				Confidence: 0.8,
			})
	}
	entries = append(entries, model.Provenance{
		DocID:      "market_trends",
		Source:     "Market analysis",
		Snippet:    "General Sri Lankan residential market trends applied to the score.",
		Confidence: 0.5,
	})
	return entries
}

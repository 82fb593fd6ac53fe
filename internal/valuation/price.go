package valuation

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/pkg/llm"
)

// PriceEngine estimates market price from features, via the model when
// one is configured and via heuristics otherwise. Construct once at
// startup; safe for concurrent use.
type PriceEngine struct {
	llm         llm.Client
	cityFactors CityFactorProvider
	geoOpts     geo.Options
	strict      bool
	baseRate    float64 // LKR per sq ft before multipliers
	ageHorizon  int     // years over which newness earns a bonus
}

// PriceEngineParams collects PriceEngine construction inputs.
type PriceEngineParams struct {
	LLM         llm.Client
	CityFactors CityFactorProvider
	GeoOptions  geo.Options
	Strict      bool
	BaseRate    float64
	AgeHorizon  int
}

// NewPriceEngine builds an engine, defaulting the city-factor provider,
// base rate, and age horizon when unset.
func NewPriceEngine(p PriceEngineParams) *PriceEngine {
	if p.CityFactors == nil {
		p.CityFactors = KeywordProvider{}
	}
	if p.BaseRate <= 0 {
		p.BaseRate = 18000
	}
	if p.AgeHorizon <= 0 {
		p.AgeHorizon = 20
	}
	return &PriceEngine{
		llm:         p.LLM,
		cityFactors: p.CityFactors,
		geoOpts:     p.GeoOptions,
		strict:      p.Strict,
		baseRate:    p.BaseRate,
		ageHorizon:  p.AgeHorizon,
	}
}

// Estimate produces a PriceEstimate. It never fails: model/parse errors
// fall back to the heuristic path (or an explicit error result in strict
// mode), and the result always carries exactly three comps.
func (e *PriceEngine) Estimate(ctx context.Context, f model.Features, marketContext string) model.PriceEstimate {
	gctx := geo.Resolve(f.Lat, f.Lon, e.geoOpts)

	if e.llm != nil {
		raw, err := e.llm.Generate(ctx, pricePrompt(f, gctx, marketContext))
		if err == nil {
			est, perr := ParsePriceJSON(raw, f)
			if perr == nil {
				est.Confidence = Confidence(f)
				zap.L().Debug("price: model estimate accepted",
					zap.Float64("estimated_price", est.EstimatedPrice))
				return *est
			}
			err = perr
		}
		zap.L().Warn("price: model path failed", zap.Error(err))
		if e.strict {
			return e.errorResult(f, "model estimation failed: "+err.Error())
		}
	} else if e.strict {
		return e.errorResult(f, "strict mode requires a configured model client")
	}

	return e.heuristic(f, gctx)
}

// errorResult is the strict-mode explicit failure: zero price, floor
// confidence, error marker. Comps stay populated so the result shape
// matches successful estimates.
func (e *PriceEngine) errorResult(f model.Features, msg string) model.PriceEstimate {
	return model.PriceEstimate{
		EstimatedPrice: 0,
		Confidence:     0.1,
		FeaturesUsed:   f.Names(),
		Comps:          GenerateComps(f, 0),
		Currency:       model.Currency,
		LocationFactor: 1.0,
		Error:          msg,
	}
}

func (e *PriceEngine) heuristic(f model.Features, gctx geo.Context) model.PriceEstimate {
	area := f.AreaOrDefault(1000)
	base := area * e.baseRate

	typeMult := propertyTypeMultiplier(f.PropertyType)
	base *= typeMult

	if f.Beds != nil {
		base += *f.Beds * 750000
	}
	if f.Baths != nil {
		base += *f.Baths * 500000
	}
	if f.YearBuilt != nil {
		base *= e.ageFactor(*f.YearBuilt)
	}

	factor := e.cityFactors.Factor(f.City, f.District)
	if gctx.Valid {
		factor += 0.5 * math.Max(0, 1-gctx.CapitalKm/100)
		factor += 0.2 * math.Max(0, 1-gctx.NearestKm/50)
		if gctx.Coastal {
			factor += 0.15
		}
		factor += 0.05 * float64(gctx.TourismScore)
	}
	base *= factor

	// Houses on land well beyond their footprint carry the surplus at a
	// discounted rate.
	if isHouseType(f.PropertyType) && f.LandSize != nil && *f.LandSize > area {
		base += (*f.LandSize - area) * e.baseRate * 0.25
	}

	estimated := round2(base)
	return model.PriceEstimate{
		EstimatedPrice:       estimated,
		PricePerSqft:         round2(estimated / area),
		Confidence:           Confidence(f),
		FeaturesUsed:         f.Names(),
		Comps:                GenerateComps(f, estimated),
		Currency:             model.Currency,
		MarketLow:            round2(estimated * 0.9),
		MarketHigh:           round2(estimated * 1.1),
		MarketRangeRationale: "Range synthesized at +/-10% of the estimate.",
		LocationFactor:       round2(factor),
		LocationRationale:    locationFactorRationale(f, gctx),
		KeyFactors:           []string{"Area", "Location", "Property Type"},
	}
}

// ageFactor scales price by building age: a fresh build earns up to +10%
// over the horizon, anything older forfeits down to -10%.
func (e *PriceEngine) ageFactor(yearBuilt float64) float64 {
	age := float64(time.Now().Year()) - yearBuilt
	if age < 0 {
		age = 0
	}
	return clamp(1+0.1*(float64(e.ageHorizon)-age)/float64(e.ageHorizon), 0.9, 1.1)
}

func propertyTypeMultiplier(t string) float64 {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "villa", "luxury", "luxury house":
		return 1.3
	case "apartment", "condominium", "condo":
		return 1.25
	case "land", "bare land":
		return 0.75
	default:
		return 1.0
	}
}

func isHouseType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "house", "villa", "luxury", "luxury house", "bungalow":
		return true
	}
	return false
}

func locationFactorRationale(f model.Features, gctx geo.Context) string {
	if gctx.Valid {
		parts := []string{}
		if gctx.CapitalKm < 50 {
			parts = append(parts, "proximity to Colombo")
		}
		if gctx.Coastal {
			parts = append(parts, "coastal position")
		}
		if gctx.TourismScore > 0 {
			parts = append(parts, "nearby tourism demand")
		}
		if len(parts) > 0 {
			return "Location factor reflects " + strings.Join(parts, " and ") + "."
		}
		return "Location factor reflects distance from major urban centers."
	}
	if f.City != "" {
		return "Location factor derived from city name without coordinates."
	}
	return "Neutral location factor: no location details provided."
}

package valuation

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/pkg/llm"
)

// Verdict thresholds on ratio = asking / estimated.
const (
	goodDealRatio   = 0.85
	overpricedRatio = 1.15
)

// DealEvaluator classifies asking price against estimated value and
// produces the optional model-backed enrichments. Construct once at
// startup; safe for concurrent use.
type DealEvaluator struct {
	llm     llm.Client
	geoOpts geo.Options
}

// NewDealEvaluator builds an evaluator. A nil client disables the
// narrative and land enrichments but never the numeric verdict.
func NewDealEvaluator(client llm.Client, opts geo.Options) *DealEvaluator {
	return &DealEvaluator{llm: client, geoOpts: opts}
}

// Evaluate is the deterministic verdict: pure arithmetic and templated
// text, no model call.
func (e *DealEvaluator) Evaluate(asking, estimated, locationScore float64) model.DealVerdict {
	ratio := 1.0
	if estimated > 0 && asking > 0 {
		ratio = asking / estimated
	}

	var verdict model.Verdict
	var confidence float64
	switch {
	case ratio <= goodDealRatio:
		verdict, confidence = model.VerdictGoodDeal, 0.8
	case ratio <= overpricedRatio:
		verdict, confidence = model.VerdictFair, 0.7
	default:
		verdict, confidence = model.VerdictOverpriced, 0.8
	}

	if locationScore > 0.8 {
		confidence += 0.1
	} else if locationScore < 0.4 {
		confidence -= 0.1
	}
	confidence = clamp(confidence, 0.1, 0.95)

	return model.DealVerdict{
		Verdict:    verdict,
		Why:        dealWhy(verdict, ratio, asking, estimated, locationScore),
		Confidence: confidence,
	}
}

// dealWhy fills the verdict-keyed explanation template: percentage
// deviation, raw price comparison, location framing.
func dealWhy(verdict model.Verdict, ratio, asking, estimated, locationScore float64) string {
	if estimated <= 0 || asking <= 0 {
		return "Insufficient pricing data to compare asking price against market value; treating the deal as fair by default."
	}

	deviation := math.Abs(ratio-1) * 100
	comparison := fmt.Sprintf("The asking price of %s compares to an estimated market value of %s.",
		FormatLKR(asking), FormatLKR(estimated))

	locationNote := "The location score is middling and neither strengthens nor weakens the case."
	if locationScore > 0.8 {
		locationNote = "A strong location score reinforces this assessment."
	} else if locationScore < 0.4 {
		locationNote = "A weak location score adds caution to this assessment."
	}

	switch verdict {
	case model.VerdictGoodDeal:
		return fmt.Sprintf("%s At %.1f%% below the estimate, this prices in a meaningful discount. %s",
			comparison, deviation, locationNote)
	case model.VerdictOverpriced:
		return fmt.Sprintf("%s At %.1f%% above the estimate, the premium is hard to justify. %s",
			comparison, deviation, locationNote)
	default:
		return fmt.Sprintf("%s The %.1f%% gap is within the normal negotiation band. %s",
			comparison, deviation, locationNote)
	}
}

// LLMExplain produces a richer narrative for a verdict. Failure returns
// "" and the templated why remains authoritative; this call never
// changes the numeric verdict.
func (e *DealEvaluator) LLMExplain(ctx context.Context, f model.Features, v model.DealVerdict, estimated, locationScore float64) string {
	if e.llm == nil {
		return ""
	}
	raw, err := e.llm.Generate(ctx, dealExplainPrompt(f, v, estimated, locationScore))
	if err == nil {
		text, perr := ParseDealJSON(raw)
		if perr == nil {
			return text
		}
		err = perr
	}
	zap.L().Warn("deal: explanation failed", zap.Error(err))
	return ""
}

// landFallback is the fixed low-information object returned when the
// land analysis cannot run. Not an error; the field is best-effort.
func landFallback() *model.LandDetails {
	return &model.LandDetails{
		LandAnalysis: "Detailed land analysis is unavailable for this property. General guidance: verify zoning, access, and utility connections with the local authority before purchase.",
	}
}

// AnalyzeLand is the best-effort development/investment narrative.
func (e *DealEvaluator) AnalyzeLand(ctx context.Context, f model.Features) *model.LandDetails {
	if e.llm == nil {
		return landFallback()
	}
	gctx := geo.Resolve(f.Lat, f.Lon, e.geoOpts)
	raw, err := e.llm.Generate(ctx, landPrompt(f, gctx))
	if err != nil {
		zap.L().Warn("deal: land analysis failed", zap.Error(err))
		return landFallback()
	}
	details := ParseLandJSON(raw)
	if details.LandAnalysis == "" {
		return landFallback()
	}
	return details
}

// LLMMarketValue asks the model for a second, independent market value
// for the orchestrator to blend against the heuristic estimate.
func (e *DealEvaluator) LLMMarketValue(ctx context.Context, f model.Features) (float64, bool) {
	if e.llm == nil {
		return 0, false
	}
	gctx := geo.Resolve(f.Lat, f.Lon, e.geoOpts)
	raw, err := e.llm.Generate(ctx, marketValuePrompt(f, gctx))
	if err == nil {
		est, perr := ParsePriceJSON(raw, f)
		if perr == nil && est.EstimatedPrice > 0 {
			return est.EstimatedPrice, true
		}
		err = perr
	}
	zap.L().Debug("deal: market value estimate unavailable", zap.Error(err))
	return 0, false
}

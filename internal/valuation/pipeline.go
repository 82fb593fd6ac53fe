package valuation

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/internal/nlp"
	"github.com/ceylonhomes/valuation-api/internal/retrieval"
)

// Orchestrator sequences the valuation stages for one request: price and
// location concurrently, then deal, risk, and enrichments. It guarantees
// a complete, well-formed result even when every external dependency
// fails.
type Orchestrator struct {
	price     *PriceEngine
	location  *LocationEngine
	deal      *DealEvaluator
	risk      *RiskAssessor
	nearby    *NearbyService // nil disables amenity/risk retrieval
	retriever *retrieval.Store
}

// OrchestratorParams collects Orchestrator construction inputs. Price,
// Location, and Deal are required; the rest are optional enrichments.
type OrchestratorParams struct {
	Price     *PriceEngine
	Location  *LocationEngine
	Deal      *DealEvaluator
	Risk      *RiskAssessor
	Nearby    *NearbyService
	Retriever *retrieval.Store
}

// NewOrchestrator wires the stages together.
func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	if p.Retriever == nil {
		p.Retriever = retrieval.NewSeededStore()
	}
	if p.Risk == nil {
		p.Risk = NewRiskAssessor(nil)
	}
	return &Orchestrator{
		price:     p.Price,
		location:  p.Location,
		deal:      p.Deal,
		risk:      p.Risk,
		nearby:    p.Nearby,
		retriever: p.Retriever,
	}
}

// Run executes the pipeline. It never panics or returns an error to the
// caller: any unanticipated failure degrades to a neutral result built
// around the asking price.
func (o *Orchestrator) Run(ctx context.Context, f model.Features, queryText string) (result model.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: recovered from panic", zap.Any("panic", r))
			result = degradedResult(f)
		}
	}()

	retrieved := o.retriever.Search(queryText, 3)
	marketContext := o.retriever.Context(queryText, 3)

	// Price and location are independent; run them concurrently and
	// join before the deal evaluation that consumes both.
	var price model.PriceEstimate
	var location model.LocationScore
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price = o.price.Estimate(gctx, f, marketContext)
		return nil
	})
	g.Go(func() error {
		location = o.location.Analyze(gctx, f)
		return nil
	})
	_ = g.Wait() // stage closures never return errors

	// Secondary model estimate, blended by the price engine's own
	// confidence: complete inputs trust the heuristic, sparse inputs
	// lean on the model.
	blended := price.EstimatedPrice
	if secondary, ok := o.deal.LLMMarketValue(ctx, f); ok && price.EstimatedPrice > 0 {
		blended = price.Confidence*price.EstimatedPrice + (1-price.Confidence)*secondary
		blended = math.Round(blended*100) / 100
		zap.L().Debug("pipeline: blended market value",
			zap.Float64("heuristic", price.EstimatedPrice),
			zap.Float64("model", secondary),
			zap.Float64("blended", blended))
	}

	verdict := o.deal.Evaluate(f.Asking(), blended, location.Score)
	land := o.deal.AnalyzeLand(ctx, f)

	var risk *model.RiskAssessment
	if o.nearby != nil && f.HasCoords() {
		nearby := o.nearby.Nearby(ctx, *f.Lat, *f.Lon)
		assessed := o.risk.Assess(ctx, f, nearby)
		risk = &assessed
	}

	result = model.AnalysisResult{
		EstimatedPrice:       blended,
		PricePerSqft:         price.PricePerSqft,
		Currency:             model.Currency,
		MarketLow:            price.MarketLow,
		MarketHigh:           price.MarketHigh,
		MarketRangeRationale: price.MarketRangeRationale,
		LocationScore:        location.Score,
		LocationFactor:       price.LocationFactor,
		LocationRationale:    price.LocationRationale,
		LocationBullets:      location.Bullets,
		LocationSummary:      location.Summary,
		Risk:                 risk,
		DealVerdict:          verdict.Verdict,
		Why:                  verdict.Why,
		Confidence:           math.Min(price.Confidence, verdict.Confidence),
		Provenance:           location.Provenance,
		LandDetails:          land,
		RetrievedContext:     retrieved,
		Error:                firstNonEmpty(price.Error, location.Error),
	}

	if explanation := o.deal.LLMExplain(ctx, f, verdict, blended, location.Score); explanation != "" {
		result.LLMExplanation = explanation
	}

	result.Entities = nlp.Entities(result.Why + " " + result.LocationSummary)
	result.QuerySummary = nlp.Summarize(result.Why, 2)

	return result
}

// degradedResult is the last line of defense: a complete, neutral
// result echoing the asking price.
func degradedResult(f model.Features) model.AnalysisResult {
	return model.AnalysisResult{
		EstimatedPrice: f.Asking(),
		Currency:       model.Currency,
		LocationScore:  0.5,
		DealVerdict:    model.VerdictFair,
		Why:            "Analysis could not be completed; the asking price is echoed back without assessment.",
		Confidence:     0.3,
		Error:          "internal analysis failure",
	}
}

package valuation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/pkg/llm"
	"github.com/ceylonhomes/valuation-api/pkg/overpass"
)

func newTestOrchestrator(client llm.Client, strict bool) *Orchestrator {
	return NewOrchestrator(OrchestratorParams{
		Price:    NewPriceEngine(PriceEngineParams{LLM: client, GeoOptions: geo.DefaultOptions(), Strict: strict}),
		Location: NewLocationEngine(client, geo.DefaultOptions(), strict),
		Deal:     NewDealEvaluator(client, geo.DefaultOptions()),
		Risk:     NewRiskAssessor(client),
	})
}

func TestOrchestrator_HeuristicOnlyRun(t *testing.T) {
	o := newTestOrchestrator(nil, false)
	result := o.Run(context.Background(), colomboFeatures(), "3 bed house in Colombo")

	assert.Greater(t, result.EstimatedPrice, 0.0)
	assert.Equal(t, model.Currency, result.Currency)
	assert.GreaterOrEqual(t, result.LocationScore, 0.0)
	assert.LessOrEqual(t, result.LocationScore, 1.0)
	assert.NotEmpty(t, result.DealVerdict)
	assert.NotEmpty(t, result.Why)
	assert.NotEmpty(t, result.Provenance)
	require.NotNil(t, result.LandDetails)
	assert.NotEmpty(t, result.LandDetails.LandAnalysis)
	assert.Empty(t, result.Error)

	// Market band brackets the heuristic estimate it was derived from.
	assert.LessOrEqual(t, result.MarketLow, result.MarketHigh)
}

func TestOrchestrator_FallbackGuarantee(t *testing.T) {
	// With the model forced to always fail, every stage still returns a
	// well-formed result in non-strict mode.
	o := newTestOrchestrator(failingLLM(), false)
	result := o.Run(context.Background(), colomboFeatures(), "house query")

	assert.Greater(t, result.EstimatedPrice, 0.0)
	assert.Greater(t, result.LocationScore, 0.0)
	assert.NotEmpty(t, result.DealVerdict)
	assert.NotEmpty(t, result.Why)
	require.NotNil(t, result.LandDetails)
	assert.NotEmpty(t, result.LandDetails.LandAnalysis)
	assert.Empty(t, result.LLMExplanation)
	assert.Empty(t, result.Error)
}

func TestOrchestrator_ConfidenceIsPessimisticMin(t *testing.T) {
	o := newTestOrchestrator(nil, false)
	f := colomboFeatures()
	result := o.Run(context.Background(), f, "")

	price := NewPriceEngine(PriceEngineParams{GeoOptions: geo.DefaultOptions()}).
		Estimate(context.Background(), f, "")
	assert.LessOrEqual(t, result.Confidence, price.Confidence)
	assert.GreaterOrEqual(t, result.Confidence, 0.1)
}

func TestOrchestrator_StrictModeErrorSurfaces(t *testing.T) {
	o := newTestOrchestrator(nil, true)
	result := o.Run(context.Background(), colomboFeatures(), "")

	assert.Equal(t, 0.0, result.EstimatedPrice)
	assert.NotEmpty(t, result.Error)
	// Strict failure still yields a syntactically complete envelope.
	assert.NotEmpty(t, result.DealVerdict)
	assert.NotEmpty(t, result.Why)
}

func TestOrchestrator_BlendsSecondaryEstimate(t *testing.T) {
	// The model answers every prompt with a price object, so the
	// secondary market-value call succeeds and gets blended by the
	// price confidence.
	client := &fakeLLM{response: `{"estimated_price": 50000000}`}
	o := newTestOrchestrator(client, false)

	f := colomboFeatures()
	result := o.Run(context.Background(), f, "")

	conf := Confidence(f)
	want := conf*50000000 + (1-conf)*50000000
	assert.InDelta(t, want, result.EstimatedPrice, 1)
}

func TestOrchestrator_AttachesRetrievalAndNLP(t *testing.T) {
	o := newTestOrchestrator(nil, false)
	result := o.Run(context.Background(), colomboFeatures(), "luxury apartment Colombo demand")

	assert.NotEmpty(t, result.RetrievedContext)
	assert.NotEmpty(t, result.QuerySummary)
	assert.NotEmpty(t, result.Entities)
}

func TestOrchestrator_RiskRequiresNearbyService(t *testing.T) {
	o := newTestOrchestrator(nil, false)
	result := o.Run(context.Background(), colomboFeatures(), "")
	assert.Nil(t, result.Risk)
}

func TestOrchestrator_RiskWithNearbyService(t *testing.T) {
	overpassClient := &fakeOverpass{responses: [][]overpass.Element{{
		{Type: "way", Center: &overpass.Center{Lat: 6.9275, Lon: 79.8615}, Tags: map[string]string{"highway": "trunk"}},
	}}}
	o := NewOrchestrator(OrchestratorParams{
		Price:    NewPriceEngine(PriceEngineParams{GeoOptions: geo.DefaultOptions()}),
		Location: NewLocationEngine(nil, geo.DefaultOptions(), false),
		Deal:     NewDealEvaluator(nil, geo.DefaultOptions()),
		Nearby:   NewNearbyService(overpassClient, 2000, 3000),
	})

	result := o.Run(context.Background(), colomboFeatures(), "")
	require.NotNil(t, result.Risk)
	assert.Equal(t, model.RiskHigh, result.Risk.Level)
	require.NotEmpty(t, result.Risk.Factors)
}

func TestDegradedResult_Shape(t *testing.T) {
	f := colomboFeatures()
	result := degradedResult(f)

	assert.Equal(t, *f.AskingPrice, result.EstimatedPrice)
	assert.Equal(t, 0.5, result.LocationScore)
	assert.Equal(t, model.VerdictFair, result.DealVerdict)
	assert.Equal(t, 0.3, result.Confidence)
	assert.NotEmpty(t, result.Why)
	assert.NotEmpty(t, result.Error)
}

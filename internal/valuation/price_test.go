package valuation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

func TestPriceEngine_HeuristicEstimate(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{})
	est := e.Estimate(context.Background(), colomboFeatures(), "")

	assert.Greater(t, est.EstimatedPrice, 0.0)
	assert.Greater(t, est.PricePerSqft, 0.0)
	assert.Equal(t, model.Currency, est.Currency)
	require.Len(t, est.Comps, model.CompCount)
	assert.Empty(t, est.Error)

	// Market band brackets the estimate.
	assert.LessOrEqual(t, est.MarketLow, est.EstimatedPrice)
	assert.GreaterOrEqual(t, est.MarketHigh, est.EstimatedPrice)

	// Confidence within the global bounds.
	assert.GreaterOrEqual(t, est.Confidence, 0.1)
	assert.LessOrEqual(t, est.Confidence, 0.95)
}

func TestPriceEngine_CoordinateSensitivity(t *testing.T) {
	// Identical features at two nearby Colombo coordinates must price
	// differently.
	e := NewPriceEngine(PriceEngineParams{})

	f1 := colomboFeatures()
	f2 := colomboFeatures()
	f2.Lat = model.Float(6.9100)
	f2.Lon = model.Float(79.8500)

	p1 := e.Estimate(context.Background(), f1, "")
	p2 := e.Estimate(context.Background(), f2, "")
	assert.NotEqual(t, p1.EstimatedPrice, p2.EstimatedPrice)
}

func TestPriceEngine_ColomboBeatsRemote(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{})

	colombo := colomboFeatures()
	jaffna := colomboFeatures()
	jaffna.City = "Jaffna"
	jaffna.Lat = model.Float(9.6615)
	jaffna.Lon = model.Float(80.0070)

	pc := e.Estimate(context.Background(), colombo, "")
	pj := e.Estimate(context.Background(), jaffna, "")
	assert.Greater(t, pc.EstimatedPrice, pj.EstimatedPrice)
}

func TestPriceEngine_PropertyTypeOrdering(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{})
	base := colomboFeatures()

	villa := base
	villa.PropertyType = "Villa"
	land := base
	land.PropertyType = "Land"

	pv := e.Estimate(context.Background(), villa, "")
	pl := e.Estimate(context.Background(), land, "")
	assert.Greater(t, pv.EstimatedPrice, pl.EstimatedPrice)
}

func TestPriceEngine_LandSurplusRaisesHousePrice(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{})

	plain := colomboFeatures()
	plain.PropertyType = "House"
	withLand := plain
	withLand.LandSize = model.Float(6000)

	assert.Greater(t,
		e.Estimate(context.Background(), withLand, "").EstimatedPrice,
		e.Estimate(context.Background(), plain, "").EstimatedPrice)
}

func TestPriceEngine_ModelPathAccepted(t *testing.T) {
	client := &fakeLLM{response: `{"estimated_price": 50000000, "market_low": 45000000, "market_high": 56000000, "location_factor": 1.8}`}
	e := NewPriceEngine(PriceEngineParams{LLM: client})

	est := e.Estimate(context.Background(), colomboFeatures(), "")
	assert.Equal(t, 50000000.0, est.EstimatedPrice)
	assert.Equal(t, 1.8, est.LocationFactor)
	require.Len(t, est.Comps, model.CompCount)
	// Confidence comes from the completeness estimator, not the model.
	assert.InDelta(t, Confidence(colomboFeatures()), est.Confidence, 1e-9)
	assert.Equal(t, 1, client.calls)
}

func TestPriceEngine_FallbackOnModelFailure(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{LLM: failingLLM()})
	est := e.Estimate(context.Background(), colomboFeatures(), "")

	assert.Greater(t, est.EstimatedPrice, 0.0)
	assert.Empty(t, est.Error)
	require.Len(t, est.Comps, model.CompCount)
}

func TestPriceEngine_FallbackOnGarbageModelOutput(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{LLM: &fakeLLM{response: "I cannot value this property."}})
	est := e.Estimate(context.Background(), colomboFeatures(), "")
	assert.Greater(t, est.EstimatedPrice, 0.0)
	assert.Empty(t, est.Error)
}

func TestPriceEngine_StrictModeWithoutClient(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{Strict: true})
	est := e.Estimate(context.Background(), colomboFeatures(), "")

	assert.Equal(t, 0.0, est.EstimatedPrice)
	assert.Equal(t, 0.1, est.Confidence)
	assert.NotEmpty(t, est.Error)
	require.Len(t, est.Comps, model.CompCount)
}

func TestPriceEngine_StrictModeModelFailure(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{LLM: failingLLM(), Strict: true})
	est := e.Estimate(context.Background(), colomboFeatures(), "")

	assert.Equal(t, 0.0, est.EstimatedPrice)
	assert.NotEmpty(t, est.Error)
}

func TestPriceEngine_NoFeaturesStillEstimates(t *testing.T) {
	e := NewPriceEngine(PriceEngineParams{})
	est := e.Estimate(context.Background(), model.Features{}, "")

	assert.Greater(t, est.EstimatedPrice, 0.0)
	assert.GreaterOrEqual(t, est.Confidence, 0.1)
	require.Len(t, est.Comps, model.CompCount)
}

package valuation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/model"
)

func TestDealEvaluator_Thresholds(t *testing.T) {
	e := NewDealEvaluator(nil, geo.DefaultOptions())

	tests := []struct {
		name      string
		asking    float64
		estimated float64
		want      model.Verdict
		wantConf  float64
	}{
		{"good deal at 0.8", 8000000, 10000000, model.VerdictGoodDeal, 0.8},
		{"fair at 1.05", 10500000, 10000000, model.VerdictFair, 0.7},
		{"overpriced at 1.3", 13000000, 10000000, model.VerdictOverpriced, 0.8},
		{"boundary 0.85 is good deal", 8500000, 10000000, model.VerdictGoodDeal, 0.8},
		{"boundary 1.15 is fair", 11500000, 10000000, model.VerdictFair, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Evaluate(tt.asking, tt.estimated, 0.5)
			assert.Equal(t, tt.want, v.Verdict)
			assert.InDelta(t, tt.wantConf, v.Confidence, 1e-9)
			assert.NotEmpty(t, v.Why)
		})
	}
}

func TestDealEvaluator_Monotonicity(t *testing.T) {
	e := NewDealEvaluator(nil, geo.DefaultOptions())
	estimated := 10000000.0

	order := map[model.Verdict]int{
		model.VerdictGoodDeal:   0,
		model.VerdictFair:       1,
		model.VerdictOverpriced: 2,
	}

	prev := -1
	for ratio := 1.4; ratio > 0.6; ratio -= 0.05 {
		v := e.Evaluate(estimated*ratio, estimated, 0.5)
		rank := order[v.Verdict]
		if prev >= 0 {
			// Decreasing ratio must never move the verdict toward Overpriced.
			assert.LessOrEqual(t, rank, prev, "ratio %.2f", ratio)
		}
		prev = rank
	}
}

func TestDealEvaluator_LocationAdjustment(t *testing.T) {
	e := NewDealEvaluator(nil, geo.DefaultOptions())

	strong := e.Evaluate(8000000, 10000000, 0.9)
	weak := e.Evaluate(8000000, 10000000, 0.3)
	mid := e.Evaluate(8000000, 10000000, 0.5)

	assert.InDelta(t, 0.9, strong.Confidence, 1e-9)
	assert.InDelta(t, 0.7, weak.Confidence, 1e-9)
	assert.InDelta(t, 0.8, mid.Confidence, 1e-9)
}

func TestDealEvaluator_ConfidenceClamped(t *testing.T) {
	e := NewDealEvaluator(nil, geo.DefaultOptions())
	for score := 0.0; score <= 1.0; score += 0.1 {
		v := e.Evaluate(13000000, 10000000, score)
		assert.GreaterOrEqual(t, v.Confidence, 0.1)
		assert.LessOrEqual(t, v.Confidence, 0.95)
	}
}

func TestDealEvaluator_ZeroEstimateIsFair(t *testing.T) {
	e := NewDealEvaluator(nil, geo.DefaultOptions())
	v := e.Evaluate(8000000, 0, 0.5)
	assert.Equal(t, model.VerdictFair, v.Verdict)
	assert.Contains(t, v.Why, "Insufficient")
}

func TestDealEvaluator_WhyCitesFormattedPrices(t *testing.T) {
	e := NewDealEvaluator(nil, geo.DefaultOptions())
	v := e.Evaluate(8000000, 10000000, 0.5)
	assert.Contains(t, v.Why, "LKR 8,000,000")
	assert.Contains(t, v.Why, "LKR 10,000,000")
}

func TestDealEvaluator_LLMExplain(t *testing.T) {
	client := &fakeLLM{response: `{"explanation": "priced below recent sales"}`}
	e := NewDealEvaluator(client, geo.DefaultOptions())
	v := e.Evaluate(8000000, 10000000, 0.5)

	text := e.LLMExplain(context.Background(), colomboFeatures(), v, 10000000, 0.5)
	assert.Equal(t, "priced below recent sales", text)

	// Failure never disturbs the verdict; it just yields no narrative.
	e = NewDealEvaluator(failingLLM(), geo.DefaultOptions())
	assert.Empty(t, e.LLMExplain(context.Background(), colomboFeatures(), v, 10000000, 0.5))

	e = NewDealEvaluator(nil, geo.DefaultOptions())
	assert.Empty(t, e.LLMExplain(context.Background(), colomboFeatures(), v, 10000000, 0.5))
}

func TestDealEvaluator_AnalyzeLandFallback(t *testing.T) {
	e := NewDealEvaluator(nil, geo.DefaultOptions())
	d := e.AnalyzeLand(context.Background(), colomboFeatures())
	assert.NotNil(t, d)
	assert.NotEmpty(t, d.LandAnalysis)

	e = NewDealEvaluator(failingLLM(), geo.DefaultOptions())
	d = e.AnalyzeLand(context.Background(), colomboFeatures())
	assert.NotNil(t, d)
	assert.NotEmpty(t, d.LandAnalysis)
}

func TestDealEvaluator_AnalyzeLandParsesModel(t *testing.T) {
	client := &fakeLLM{response: `{"land_analysis": "flat urban block", "land_use_opportunities": ["residential", "mixed use"]}`}
	e := NewDealEvaluator(client, geo.DefaultOptions())

	d := e.AnalyzeLand(context.Background(), colomboFeatures())
	assert.Equal(t, "flat urban block", d.LandAnalysis)
	assert.Len(t, d.LandUseOpportunities, 2)
}

func TestDealEvaluator_LLMMarketValue(t *testing.T) {
	client := &fakeLLM{response: `{"estimated_price": 52000000}`}
	e := NewDealEvaluator(client, geo.DefaultOptions())

	v, ok := e.LLMMarketValue(context.Background(), colomboFeatures())
	assert.True(t, ok)
	assert.Equal(t, 52000000.0, v)

	e = NewDealEvaluator(failingLLM(), geo.DefaultOptions())
	_, ok = e.LLMMarketValue(context.Background(), colomboFeatures())
	assert.False(t, ok)

	e = NewDealEvaluator(nil, geo.DefaultOptions())
	_, ok = e.LLMMarketValue(context.Background(), colomboFeatures())
	assert.False(t, ok)
}

package valuation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"wrapped in prose", "Here is my analysis:\n{\"a\": 1}\nHope this helps!", `{"a": 1}`},
		{"nested braces", `text {"a": {"b": 2}} tail`, `{"a": {"b": 2}}`},
		{"braces inside strings", `{"a": "close } brace"}`, `{"a": "close } brace"}`},
		{"escaped quote in string", `{"a": "quote \" and } brace"}`, `{"a": "quote \" and } brace"}`},
		{"no object", "no json here", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestParsePriceJSON_Normalizes(t *testing.T) {
	f := colomboFeatures()
	raw := `Based on my analysis:
{"estimated_price": 42000000, "confidence": 1.7, "location_factor": 0, "market_low": 100, "market_high": 50}`

	est, err := ParsePriceJSON(raw, f)
	require.NoError(t, err)

	assert.Equal(t, 42000000.0, est.EstimatedPrice)
	// Confidence clamps into [0.1, 0.95].
	assert.Equal(t, 0.95, est.Confidence)
	// Non-positive location factor defaults to 1.0.
	assert.Equal(t, 1.0, est.LocationFactor)
	// price_per_sqft derived from area.
	assert.InDelta(t, 42000000.0/1500, est.PricePerSqft, 0.01)
	// Invalid band (low > high) resynthesized at +/-10%.
	assert.InDelta(t, 42000000*0.9, est.MarketLow, 0.01)
	assert.InDelta(t, 42000000*1.1, est.MarketHigh, 0.01)
	assert.Equal(t, model.Currency, est.Currency)
	require.Len(t, est.Comps, model.CompCount)
}

func TestParsePriceJSON_ValidBandKept(t *testing.T) {
	raw := `{"estimated_price": 1000, "market_low": 900, "market_high": 1200, "market_range_rationale": "comparable sales"}`
	est, err := ParsePriceJSON(raw, model.Features{})
	require.NoError(t, err)
	assert.Equal(t, 900.0, est.MarketLow)
	assert.Equal(t, 1200.0, est.MarketHigh)
	assert.Equal(t, "comparable sales", est.MarketRangeRationale)
}

func TestParsePriceJSON_Errors(t *testing.T) {
	_, err := ParsePriceJSON("no json", model.Features{})
	assert.Error(t, err)

	_, err = ParsePriceJSON(`{"estimated_price": 0}`, model.Features{})
	assert.Error(t, err)

	_, err = ParsePriceJSON(`{"estimated_price": "not a number"}`, model.Features{})
	assert.Error(t, err)
}

func TestNormalizeComps_TruncatesAndPads(t *testing.T) {
	f := colomboFeatures()

	four := make([]model.Comparable, 4)
	for i := range four {
		four[i].Price = float64(i+1) * 1000
		four[i].Area = 100
	}
	got := NormalizeComps(four, f, 40000000)
	require.Len(t, got, model.CompCount)
	assert.Equal(t, 1000.0, got[0].Price)

	one := []model.Comparable{{ID: "model_comp", Price: 5000, Area: 100}}
	got = NormalizeComps(one, f, 40000000)
	require.Len(t, got, model.CompCount)
	// IDs are rewritten uniformly, padded entries come from the generator.
	assert.Equal(t, "comp_1", got[0].ID)
	assert.Equal(t, 5000.0, got[0].Price)
	assert.Greater(t, got[1].Price, 0.0)

	got = NormalizeComps(nil, f, 40000000)
	require.Len(t, got, model.CompCount)
}

func TestParseLocationJSON(t *testing.T) {
	raw := `Sure: {"score": 1.4, "bullets": ["a", "b"], "location_drivers": ["c"], "summary": "s",
		"provenance": [{"doc_id": "d1", "snippet": "snip", "confidence": 0}]}`
	loc, err := ParseLocationJSON(raw)
	require.NoError(t, err)

	assert.Equal(t, 1.0, loc.Score) // clamped
	assert.Equal(t, []string{"a", "b", "c"}, loc.Bullets)
	assert.Equal(t, "s", loc.Summary)
	require.Len(t, loc.Provenance, 1)
	assert.Equal(t, 0.5, loc.Provenance[0].Confidence) // defaulted
	assert.Equal(t, "model", loc.Provenance[0].Source) // defaulted
}

func TestNormalizeProvenance_SnippetCutsOnRuneBoundary(t *testing.T) {
	// A Sinhala rune straddling the length cap must not leave a partial
	// byte sequence behind.
	long := strings.Repeat("x", 279) + strings.Repeat("ක", 10)
	out := NormalizeProvenance([]model.Provenance{{Snippet: long}})
	require.Len(t, out, 1)

	assert.LessOrEqual(t, len(out[0].Snippet), 280)
	assert.True(t, utf8.ValidString(out[0].Snippet))
	assert.Equal(t, strings.Repeat("x", 279), out[0].Snippet)

	short := model.Provenance{Snippet: "fits"}
	assert.Equal(t, "fits", NormalizeProvenance([]model.Provenance{short})[0].Snippet)
}

func TestParseDealJSON(t *testing.T) {
	text, err := ParseDealJSON(`{"explanation": "solid buy", "key_factors": ["price", "location"]}`)
	require.NoError(t, err)
	assert.Equal(t, "solid buy Key factors: price, location.", text)

	// Free text is acceptable for explanation-only calls.
	text, err = ParseDealJSON("This looks like a fair deal overall.")
	require.NoError(t, err)
	assert.Equal(t, "This looks like a fair deal overall.", text)

	_, err = ParseDealJSON("   ")
	assert.Error(t, err)

	_, err = ParseDealJSON(`{"confidence": 0.9}`)
	assert.Error(t, err)
}

func TestParseRiskJSON(t *testing.T) {
	r, err := ParseRiskJSON(`{"level": "HIGH", "factors": [{"name": "flood", "severity": 9}], "summary": "s"}`)
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, r.Level)
	assert.Equal(t, 5, r.Factors[0].Severity) // clamped

	_, err = ParseRiskJSON(`{"level": "catastrophic"}`)
	assert.Error(t, err)
}

func TestParseLandJSON_ToleratesFreeText(t *testing.T) {
	d := ParseLandJSON("The land slopes gently toward the road.")
	assert.Equal(t, "The land slopes gently toward the road.", d.LandAnalysis)
	assert.Empty(t, d.ParsingError)

	d = ParseLandJSON(`{"land_analysis": "flat block", "development_potential": "good"}`)
	assert.Equal(t, "flat block", d.LandAnalysis)
	assert.Equal(t, "good", d.DevelopmentPotential)
}

package valuation

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

// ExtractJSON returns the first balanced {...} span in free-form model
// text. Models routinely wrap JSON in commentary; anything before the
// first opening brace and after its matching close is discarded. Returns
// "" when no balanced object exists.
func ExtractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

type priceJSON struct {
	EstimatedPrice       float64            `json:"estimated_price"`
	PricePerSqft         float64            `json:"price_per_sqft"`
	Confidence           float64            `json:"confidence"`
	LocationFactor       float64            `json:"location_factor"`
	LocationRationale    string             `json:"location_rationale"`
	MarketLow            float64            `json:"market_low"`
	MarketHigh           float64            `json:"market_high"`
	MarketRangeRationale string             `json:"market_range_rationale"`
	Reasoning            string             `json:"reasoning"`
	KeyFactors           []string           `json:"key_factors"`
	Comps                []model.Comparable `json:"comps"`
}

// ParsePriceJSON normalizes model price output. Derives price_per_sqft
// when absent, clamps confidence, coerces location_factor positive,
// validates the market band (resynthesized at ±10% when the model's
// bounds do not bracket the estimate), and forces exactly three comps.
func ParsePriceJSON(raw string, f model.Features) (*model.PriceEstimate, error) {
	span := ExtractJSON(raw)
	if span == "" {
		return nil, eris.New("normalize: no JSON object in model output")
	}

	var p priceJSON
	if err := json.Unmarshal([]byte(span), &p); err != nil {
		return nil, eris.Wrap(err, "normalize: decode price JSON")
	}
	if p.EstimatedPrice <= 0 {
		return nil, eris.New("normalize: non-positive estimated_price")
	}

	conf := p.Confidence
	if conf == 0 {
		conf = 0.5
	}
	conf = clamp(conf, 0.1, 0.95)

	perSqft := p.PricePerSqft
	if perSqft <= 0 {
		if area := f.AreaOrDefault(0); area > 0 {
			perSqft = round2(p.EstimatedPrice / area)
		}
	}

	factor := p.LocationFactor
	if factor <= 0 {
		factor = 1.0
	}

	low, high := p.MarketLow, p.MarketHigh
	rationale := p.MarketRangeRationale
	if !(low > 0 && low <= p.EstimatedPrice && p.EstimatedPrice <= high) {
		low = round2(p.EstimatedPrice * 0.9)
		high = round2(p.EstimatedPrice * 1.1)
		rationale = "Range synthesized at +/-10% of the estimate."
	}

	return &model.PriceEstimate{
		EstimatedPrice:       round2(p.EstimatedPrice),
		PricePerSqft:         perSqft,
		Confidence:           conf,
		FeaturesUsed:         f.Names(),
		Comps:                NormalizeComps(p.Comps, f, p.EstimatedPrice),
		Currency:             model.Currency,
		MarketLow:            low,
		MarketHigh:           high,
		MarketRangeRationale: rationale,
		LocationFactor:       factor,
		LocationRationale:    firstNonEmpty(p.LocationRationale, p.Reasoning),
		KeyFactors:           p.KeyFactors,
	}, nil
}

// NormalizeComps forces a comp list to exactly model.CompCount entries,
// truncating extras and padding shortfalls with synthetic comps derived
// from the accepted estimate. IDs are rewritten comp_1..comp_3 so padded
// and model-provided entries are indistinguishable downstream.
func NormalizeComps(comps []model.Comparable, f model.Features, estimated float64) []model.Comparable {
	if len(comps) > model.CompCount {
		comps = comps[:model.CompCount]
	}
	if len(comps) < model.CompCount {
		synth := GenerateComps(f, estimated)
		comps = append(comps, synth[len(comps):]...)
	}
	for i := range comps {
		comps[i].ID = compID(i)
		if comps[i].PriceLKR == "" && comps[i].Price > 0 {
			comps[i].PriceLKR = FormatLKR(comps[i].Price)
		}
		if comps[i].PricePerSqft == 0 && comps[i].Area > 0 {
			comps[i].PricePerSqft = round2(comps[i].Price / comps[i].Area)
		}
	}
	return comps
}

type locationJSON struct {
	Score           float64            `json:"score"`
	Bullets         []string           `json:"bullets"`
	LocationDrivers []string           `json:"location_drivers"`
	Summary         string             `json:"summary"`
	Provenance      []model.Provenance `json:"provenance"`
}

// ParseLocationJSON normalizes model location output: score clamped to
// [0,1], bullets merged from bullets + location_drivers, provenance
// entries given safe defaults.
func ParseLocationJSON(raw string) (*model.LocationScore, error) {
	span := ExtractJSON(raw)
	if span == "" {
		return nil, eris.New("normalize: no JSON object in model output")
	}

	var l locationJSON
	if err := json.Unmarshal([]byte(span), &l); err != nil {
		return nil, eris.Wrap(err, "normalize: decode location JSON")
	}

	bullets := append([]string{}, l.Bullets...)
	bullets = append(bullets, l.LocationDrivers...)
	if len(bullets) > 10 {
		bullets = bullets[:10]
	}

	return &model.LocationScore{
		Score:      clamp(l.Score, 0, 1),
		Bullets:    bullets,
		Summary:    l.Summary,
		Provenance: NormalizeProvenance(l.Provenance),
	}, nil
}

// NormalizeProvenance applies shape defaults: confidence defaults to 0.5
// and clamps to [0,1], snippets truncate to 280 chars, sourceless
// entries get a generic source.
func NormalizeProvenance(entries []model.Provenance) []model.Provenance {
	out := make([]model.Provenance, 0, len(entries))
	for _, p := range entries {
		if p.Confidence == 0 {
			p.Confidence = 0.5
		}
		p.Confidence = clamp(p.Confidence, 0, 1)
		if len(p.Snippet) > 280 {
			cut := 280
			for cut > 0 && !utf8.RuneStart(p.Snippet[cut]) {
				cut--
			}
			p.Snippet = p.Snippet[:cut]
		}
		if p.Source == "" {
			p.Source = "model"
		}
		out = append(out, p)
	}
	return out
}

type dealJSON struct {
	Verdict     string   `json:"verdict"`
	Why         string   `json:"why"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	KeyFactors  []string `json:"key_factors"`
}

// ParseDealJSON extracts a narrative explanation from model deal output.
// The numeric verdict is never taken from the model; only the text is.
func ParseDealJSON(raw string) (string, error) {
	span := ExtractJSON(raw)
	if span == "" {
		// Free-text answers are acceptable for explanation-only calls.
		text := strings.TrimSpace(raw)
		if text == "" {
			return "", eris.New("normalize: empty deal explanation")
		}
		return text, nil
	}

	var d dealJSON
	if err := json.Unmarshal([]byte(span), &d); err != nil {
		return "", eris.Wrap(err, "normalize: decode deal JSON")
	}
	text := firstNonEmpty(d.Explanation, d.Why)
	if text == "" {
		return "", eris.New("normalize: deal JSON carries no explanation")
	}
	if len(d.KeyFactors) > 0 {
		text += " Key factors: " + strings.Join(d.KeyFactors, ", ") + "."
	}
	return text, nil
}

type riskJSON struct {
	Level   string             `json:"level"`
	Factors []model.RiskFactor `json:"factors"`
	Summary string             `json:"summary"`
}

// ParseRiskJSON normalizes model risk output. The level must be one of
// the known enum values; factor severities clamp to 1..5.
func ParseRiskJSON(raw string) (*model.RiskAssessment, error) {
	span := ExtractJSON(raw)
	if span == "" {
		return nil, eris.New("normalize: no JSON object in model output")
	}

	var r riskJSON
	if err := json.Unmarshal([]byte(span), &r); err != nil {
		return nil, eris.Wrap(err, "normalize: decode risk JSON")
	}

	var level model.RiskLevel
	switch strings.ToLower(strings.TrimSpace(r.Level)) {
	case "low":
		level = model.RiskLow
	case "medium", "moderate":
		level = model.RiskMedium
	case "high":
		level = model.RiskHigh
	default:
		return nil, eris.Errorf("normalize: unknown risk level %q", r.Level)
	}

	for i := range r.Factors {
		if r.Factors[i].Severity < 1 {
			r.Factors[i].Severity = 1
		}
		if r.Factors[i].Severity > 5 {
			r.Factors[i].Severity = 5
		}
	}

	return &model.RiskAssessment{
		Level:   level,
		Factors: r.Factors,
		Summary: r.Summary,
	}, nil
}

// ParseLandJSON decodes the best-effort land analysis. Tolerates raw
// text: non-JSON output becomes the land_analysis field verbatim.
func ParseLandJSON(raw string) *model.LandDetails {
	span := ExtractJSON(raw)
	if span == "" {
		return &model.LandDetails{LandAnalysis: strings.TrimSpace(raw)}
	}
	var d model.LandDetails
	if err := json.Unmarshal([]byte(span), &d); err != nil {
		return &model.LandDetails{
			LandAnalysis: strings.TrimSpace(raw),
			ParsingError: "model output was not valid JSON",
		}
	}
	return &d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

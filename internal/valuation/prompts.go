package valuation

import (
	"fmt"
	"strings"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/model"
)

// formatFeatures renders the present feature fields as labeled lines for
// prompt embedding.
func formatFeatures(f model.Features) string {
	var lines []string
	add := func(label, value string) {
		lines = append(lines, label+": "+value)
	}
	addNum := func(label string, v *float64, unit string) {
		if v != nil {
			add(label, strings.TrimSpace(fmt.Sprintf("%g %s", *v, unit)))
		}
	}

	if f.City != "" {
		add("City", f.City)
	}
	if f.District != "" {
		add("District", f.District)
	}
	if f.PropertyType != "" {
		add("Property Type", f.PropertyType)
	}
	addNum("Area", f.Area, "sq ft")
	addNum("Bedrooms", f.Beds, "")
	addNum("Bathrooms", f.Baths, "")
	addNum("Year Built", f.YearBuilt, "")
	addNum("Land Size", f.LandSize, "sq ft")
	if f.AskingPrice != nil && *f.AskingPrice > 0 {
		add("Asking Price", FormatLKR(*f.AskingPrice))
	}
	if f.HasCoords() {
		add("Coordinates", fmt.Sprintf("%.4f, %.4f", *f.Lat, *f.Lon))
	}
	if len(lines) == 0 {
		return "(no details provided)"
	}
	return strings.Join(lines, "\n")
}

// formatGeoContext renders the derived geographic context, or "" when
// coordinates were absent.
func formatGeoContext(g geo.Context) string {
	if !g.Valid {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Nearest reference city: %s (%.1f km)\n", g.NearestHub, g.NearestKm)
	fmt.Fprintf(&b, "Distance to Colombo: %.1f km\n", g.CapitalKm)
	if g.Coastal {
		b.WriteString("Coastal location\n")
	}
	if g.TourismScore > 0 {
		fmt.Fprintf(&b, "Tourism hubs within reach: %d\n", g.TourismScore)
	}
	return b.String()
}

func pricePrompt(f model.Features, g geo.Context, context string) string {
	var b strings.Builder
	b.WriteString("You are a real-estate price estimator for the Sri Lankan property market.\n")
	b.WriteString("Analyze the property below and estimate a realistic market price in Sri Lankan Rupees (LKR).\n\n")
	b.WriteString("Property details:\n")
	b.WriteString(formatFeatures(f))
	b.WriteString("\n")
	if gc := formatGeoContext(g); gc != "" {
		b.WriteString("\nGeographic context:\n")
		b.WriteString(gc)
	}
	if context != "" {
		b.WriteString("\nMarket context:\n")
		b.WriteString(context)
		b.WriteString("\n")
	}
	b.WriteString(`
Consider location, size, bedrooms and bathrooms, property type, age, and current Sri Lankan market conditions. Houses typically range LKR 5M-50M+ and apartments LKR 3M-30M+ depending on location and features.

Respond with ONLY a JSON object with these fields:
{
  "estimated_price": <number, LKR>,
  "price_per_sqft": <number, LKR>,
  "confidence": <number 0 to 1>,
  "location_factor": <number, positive multiplier>,
  "location_rationale": "<one sentence>",
  "market_low": <number, LKR>,
  "market_high": <number, LKR>,
  "market_range_rationale": "<one sentence>",
  "key_factors": ["<factor>", "<factor>", "<factor>"],
  "comps": [{"id": "comp_1", "price": <number>, "area": <number>, "beds": <number>, "baths": <number>, "city": "<city>", "property_type": "<type>", "distance": <km>, "sold_date": "<YYYY-MM-DD>"}]
}
`)
	return b.String()
}

func locationPrompt(f model.Features, g geo.Context, baseline float64) string {
	var b strings.Builder
	b.WriteString("You are a location analyst for Sri Lankan residential property.\n")
	fmt.Fprintf(&b, "A heuristic model scored this location %.2f on a 0-1 scale. Refine that assessment.\n\n", baseline)
	b.WriteString("Property details:\n")
	b.WriteString(formatFeatures(f))
	b.WriteString("\n")
	if gc := formatGeoContext(g); gc != "" {
		b.WriteString("\nGeographic context:\n")
		b.WriteString(gc)
	}
	b.WriteString(`
Respond with ONLY a JSON object:
{
  "score": <number 0 to 1>,
  "bullets": ["<short factual point>", ...6 to 10 entries...],
  "summary": "<2-3 sentence assessment>",
  "provenance": [{"doc_id": "<id>", "source": "<source>", "snippet": "<short quote>", "link": "<url or empty>", "confidence": <0 to 1>}]
}
`)
	return b.String()
}

func dealExplainPrompt(f model.Features, v model.DealVerdict, estimated float64, locationScore float64) string {
	var b strings.Builder
	b.WriteString("You are advising a property buyer in Sri Lanka.\n\n")
	b.WriteString("Property details:\n")
	b.WriteString(formatFeatures(f))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Estimated market value: %s\n", FormatLKR(estimated))
	fmt.Fprintf(&b, "Asking price: %s\n", FormatLKR(f.Asking()))
	fmt.Fprintf(&b, "Location score: %.2f of 1.0\n", locationScore)
	fmt.Fprintf(&b, "Verdict: %s\n\n", v.Verdict)
	b.WriteString(`Explain this verdict to the buyer in plain language. Respond with ONLY a JSON object:
{
  "explanation": "<3-5 sentences>",
  "key_factors": ["<factor>", "<factor>", "<factor>"]
}
`)
	return b.String()
}

func landPrompt(f model.Features, g geo.Context) string {
	var b strings.Builder
	b.WriteString("You are a land development analyst for Sri Lankan real estate.\n\n")
	b.WriteString("Property details:\n")
	b.WriteString(formatFeatures(f))
	b.WriteString("\n")
	if gc := formatGeoContext(g); gc != "" {
		b.WriteString("\nGeographic context:\n")
		b.WriteString(gc)
	}
	b.WriteString(`
Assess the land and development potential, typical local zoning constraints, and investment outlook. Respond with ONLY a JSON object:
{
  "land_analysis": "<2-3 sentences>",
  "development_potential": "<1-2 sentences>",
  "land_use_opportunities": ["<use>", "<use>"],
  "restrictions": "<1-2 sentences>",
  "investment_potential": "<1-2 sentences>"
}
`)
	return b.String()
}

func marketValuePrompt(f model.Features, g geo.Context) string {
	var b strings.Builder
	b.WriteString("Estimate the current market value in LKR of the Sri Lankan property below.\n\n")
	b.WriteString(formatFeatures(f))
	b.WriteString("\n")
	if gc := formatGeoContext(g); gc != "" {
		b.WriteString("\nGeographic context:\n")
		b.WriteString(gc)
	}
	b.WriteString("\nRespond with ONLY a JSON object: {\"estimated_price\": <number, LKR>}\n")
	return b.String()
}

func riskPrompt(f model.Features, heuristic model.RiskAssessment, nearby *model.NearbyAmenities) string {
	var b strings.Builder
	b.WriteString("You are assessing environmental and proximity hazards for a Sri Lankan property.\n\n")
	b.WriteString("Property details:\n")
	b.WriteString(formatFeatures(f))
	b.WriteString("\n\nHeuristic assessment:\n")
	fmt.Fprintf(&b, "Level: %s\n", heuristic.Level)
	for _, fac := range heuristic.Factors {
		fmt.Fprintf(&b, "- %s (severity %d): %s\n", fac.Name, fac.Severity, fac.Description)
	}
	if nearby != nil {
		b.WriteString("\nNearby hazard features:\n")
		for _, cat := range hazardCategories {
			for _, a := range nearby.Categories[cat] {
				fmt.Fprintf(&b, "- %s: %s at %.2f km\n", cat, a.Name, a.DistanceKm)
			}
		}
	}
	b.WriteString(`
Refine the assessment. Respond with ONLY a JSON object:
{
  "level": "Low" | "Medium" | "High",
  "factors": [{"name": "<hazard>", "severity": <1 to 5>, "description": "<one sentence>"}],
  "summary": "<2 sentences>"
}
`)
	return b.String()
}

package valuation

import (
	"math"
	"math/rand/v2"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

// compSoldDate is the fixed sold date stamped on synthetic comparables.
const compSoldDate = "2024-01-15"

var lkrPrinter = message.NewPrinter(language.English)

// FormatLKR renders an amount with thousand separators, e.g.
// "LKR 12,500,000".
func FormatLKR(v float64) string {
	return lkrPrinter.Sprintf("LKR %.0f", math.Round(v))
}

// compRNG builds a generator seeded by the rounded coordinate pair so
// repeated calls for the same location produce the same comparables.
// Missing coordinates fall back to fixed seeds.
func compRNG(f model.Features) *rand.Rand {
	var s1, s2 uint64 = 17, 43
	if f.Lat != nil {
		s1 = uint64(int64(math.Round(*f.Lat * 1e4)))
	}
	if f.Lon != nil {
		s2 = uint64(int64(math.Round(*f.Lon * 1e4)))
	}
	return rand.New(rand.NewPCG(s1, s2))
}

// GenerateComps synthesizes exactly model.CompCount comparables around an
// estimate: price perturbed by [0.8, 1.2), area by [0.9, 1.1), distance
// drawn from [0.1, 2.0) km.
func GenerateComps(f model.Features, estimated float64) []model.Comparable {
	rng := compRNG(f)
	area := f.AreaOrDefault(1000)
	beds, baths := 2.0, 2.0
	if f.Beds != nil {
		beds = *f.Beds
	}
	if f.Baths != nil {
		baths = *f.Baths
	}

	comps := make([]model.Comparable, 0, model.CompCount)
	for i := 0; i < model.CompCount; i++ {
		price := estimated * (0.8 + 0.4*rng.Float64())
		compArea := area * (0.9 + 0.2*rng.Float64())
		perSqft := 0.0
		if compArea > 0 {
			perSqft = round2(price / compArea)
		}
		comps = append(comps, model.Comparable{
			ID:           compID(i),
			Price:        round2(price),
			PriceLKR:     FormatLKR(price),
			Area:         round2(compArea),
			Beds:         beds,
			Baths:        baths,
			City:         f.City,
			PropertyType: f.PropertyType,
			PricePerSqft: perSqft,
			Distance:     math.Round((0.1+1.9*rng.Float64())*10) / 10,
			SoldDate:     compSoldDate,
		})
	}
	return comps
}

func compID(i int) string {
	return [...]string{"comp_1", "comp_2", "comp_3"}[i%model.CompCount]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

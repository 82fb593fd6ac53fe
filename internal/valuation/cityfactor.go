package valuation

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CityFactorProvider maps a city/district name to a price multiplier.
// Implementations must be safe for concurrent use and must always return
// a positive factor.
type CityFactorProvider interface {
	Factor(city, district string) float64
}

// highDemandKeywords are secondary-tier markets. Substring match against
// the lowercased city name.
var highDemandKeywords = []string{
	"kandy", "galle", "negombo", "dehiwala", "mount lavinia", "moratuwa",
	"nugegoda", "rajagiriya", "battaramulla", "kotte", "wattala", "ja-ela",
}

// KeywordProvider derives a multiplier from the city name alone. The
// capital gets the highest fixed factor, known high-demand markets a
// secondary one, and everything else a mild factor keyed on name length
// as a cheap proxy for specificity.
type KeywordProvider struct{}

func (KeywordProvider) Factor(city, district string) float64 {
	name := strings.ToLower(strings.TrimSpace(city))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(district))
	}
	if name == "" {
		return 1.0
	}
	if strings.Contains(name, "colombo") {
		return 2.0
	}
	for _, kw := range highDemandKeywords {
		if strings.Contains(name, kw) {
			return 1.5
		}
	}
	mild := 1.0 + 0.02*float64(len(name))
	if mild > 1.3 {
		mild = 1.3
	}
	return mild
}

// TableProvider looks up factors from a YAML table keyed by lowercased
// city or district name, falling back to the keyword heuristic on miss.
type TableProvider struct {
	table    map[string]float64
	fallback KeywordProvider
}

// NewTableProvider loads a YAML file of the form `city: factor`.
func NewTableProvider(path string) (*TableProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: read city table")
	}

	loaded := make(map[string]float64)
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return nil, eris.Wrap(err, "valuation: parse city table")
	}

	table := make(map[string]float64, len(loaded))
	for name, factor := range loaded {
		if factor > 0 {
			table[strings.ToLower(strings.TrimSpace(name))] = factor
		}
	}
	return &TableProvider{table: table}, nil
}

func (p *TableProvider) Factor(city, district string) float64 {
	if f, ok := p.table[strings.ToLower(strings.TrimSpace(city))]; ok {
		return f
	}
	if f, ok := p.table[strings.ToLower(strings.TrimSpace(district))]; ok {
		return f
	}
	return p.fallback.Factor(city, district)
}

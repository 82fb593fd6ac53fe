package valuation

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

// fakeLLM returns a canned response or error for every prompt.
type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

// failingLLM always errors, for fallback-guarantee tests.
func failingLLM() *fakeLLM {
	return &fakeLLM{err: eris.New("model unavailable")}
}

// colomboFeatures is the standard complete test property.
func colomboFeatures() model.Features {
	return model.Features{
		City:        "Colombo",
		Lat:         model.Float(6.9271),
		Lon:         model.Float(79.8612),
		Area:        model.Float(1500),
		Beds:        model.Float(3),
		Baths:       model.Float(2),
		YearBuilt:   model.Float(2015),
		AskingPrice: model.Float(45000000),
	}
}

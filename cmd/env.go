package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/geo"
	"github.com/ceylonhomes/valuation-api/internal/retrieval"
	"github.com/ceylonhomes/valuation-api/internal/store"
	"github.com/ceylonhomes/valuation-api/internal/valuation"
	"github.com/ceylonhomes/valuation-api/pkg/llm"
	"github.com/ceylonhomes/valuation-api/pkg/overpass"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// newLLMClient builds the model client, or nil when no key is configured
// so every engine runs heuristic-only.
func newLLMClient() llm.Client {
	if cfg.LLM.Key == "" {
		zap.L().Info("no model key configured, running heuristic-only")
		return nil
	}
	return llm.NewClient(cfg.LLM.Key,
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRateLimit(cfg.LLM.RatePerSecond),
	)
}

func newNearbyService() *valuation.NearbyService {
	client := overpass.NewHTTPClient(cfg.Overpass.BaseURL, time.Duration(cfg.Overpass.TimeoutSecs)*time.Second)
	return valuation.NewNearbyService(client, cfg.Overpass.POIRadiusM, cfg.Overpass.LinearRadiusM)
}

// strictMode is on when either the valuation mode or the model config
// demands errors over fallbacks.
func strictMode() bool {
	return cfg.LLM.Strict || cfg.Valuation.Mode == "strict"
}

// newOrchestrator assembles the full valuation pipeline from config.
func newOrchestrator(client llm.Client, nearby *valuation.NearbyService) (*valuation.Orchestrator, error) {
	geoOpts := geo.Options{
		CoastalThresholdKm: cfg.Geo.CoastalThresholdKm,
		TourismThresholdKm: cfg.Geo.TourismThresholdKm,
	}

	var cityFactors valuation.CityFactorProvider
	if cfg.Valuation.CityTablePath != "" {
		provider, err := valuation.NewTableProvider(cfg.Valuation.CityTablePath)
		if err != nil {
			return nil, eris.Wrap(err, "load city factor table")
		}
		cityFactors = provider
	}

	strict := strictMode()
	price := valuation.NewPriceEngine(valuation.PriceEngineParams{
		LLM:         client,
		CityFactors: cityFactors,
		GeoOptions:  geoOpts,
		Strict:      strict,
		BaseRate:    cfg.Valuation.BaseRatePerSqft,
		AgeHorizon:  cfg.Valuation.AgeHorizonYears,
	})

	return valuation.NewOrchestrator(valuation.OrchestratorParams{
		Price:     price,
		Location:  valuation.NewLocationEngine(client, geoOpts, strict),
		Deal:      valuation.NewDealEvaluator(client, geoOpts),
		Risk:      valuation.NewRiskAssessor(client),
		Nearby:    nearby,
		Retriever: retrieval.NewSeededStore(),
	}), nil
}

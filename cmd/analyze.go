package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/internal/security"
)

var (
	analyzeCity     string
	analyzeDistrict string
	analyzeType     string
	analyzeQuery    string
	analyzeLat      float64
	analyzeLon      float64
	analyzeArea     float64
	analyzeBeds     float64
	analyzeBaths    float64
	analyzeYear     float64
	analyzeLand     float64
	analyzeAsking   float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one valuation from flags and print the result JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f := model.Features{
			City:         analyzeCity,
			District:     analyzeDistrict,
			PropertyType: analyzeType,
			AskingPrice:  model.Float(analyzeAsking),
		}
		setIfChanged := func(flag string, target **float64, v float64) {
			if cmd.Flags().Changed(flag) {
				*target = model.Float(v)
			}
		}
		setIfChanged("lat", &f.Lat, analyzeLat)
		setIfChanged("lon", &f.Lon, analyzeLon)
		setIfChanged("area", &f.Area, analyzeArea)
		setIfChanged("beds", &f.Beds, analyzeBeds)
		setIfChanged("baths", &f.Baths, analyzeBaths)
		setIfChanged("year-built", &f.YearBuilt, analyzeYear)
		setIfChanged("land-size", &f.LandSize, analyzeLand)

		if errs := security.ValidateFeatures(f); len(errs) > 0 {
			for _, fe := range errs {
				zap.L().Error("invalid input", zap.String("field", fe.Field), zap.String("message", fe.Message))
			}
			return eris.New("invalid property features")
		}

		orch, err := newOrchestrator(newLLMClient(), nil)
		if err != nil {
			return err
		}

		result := orch.Run(ctx, f, analyzeQuery)

		zap.L().Info("analysis complete",
			zap.Float64("estimated_price", result.EstimatedPrice),
			zap.Float64("location_score", result.LocationScore),
			zap.String("verdict", string(result.DealVerdict)),
			zap.Float64("confidence", result.Confidence),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCity, "city", "", "city name (required)")
	analyzeCmd.Flags().StringVar(&analyzeDistrict, "district", "", "district name")
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "property type (house, apartment, villa, land)")
	analyzeCmd.Flags().StringVar(&analyzeQuery, "query", "", "free-text query for context retrieval")
	analyzeCmd.Flags().Float64Var(&analyzeLat, "lat", 0, "latitude")
	analyzeCmd.Flags().Float64Var(&analyzeLon, "lon", 0, "longitude")
	analyzeCmd.Flags().Float64Var(&analyzeArea, "area", 0, "building area in sq ft")
	analyzeCmd.Flags().Float64Var(&analyzeBeds, "beds", 0, "bedroom count")
	analyzeCmd.Flags().Float64Var(&analyzeBaths, "baths", 0, "bathroom count")
	analyzeCmd.Flags().Float64Var(&analyzeYear, "year-built", 0, "construction year")
	analyzeCmd.Flags().Float64Var(&analyzeLand, "land-size", 0, "land extent in sq ft")
	analyzeCmd.Flags().Float64Var(&analyzeAsking, "asking", 0, "asking price in LKR (required)")
	_ = analyzeCmd.MarkFlagRequired("city")
	_ = analyzeCmd.MarkFlagRequired("asking")
	rootCmd.AddCommand(analyzeCmd)
}

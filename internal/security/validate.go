package security

import (
	"fmt"
	"strings"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

// FieldError is one input-validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// knownCities is the Sri Lankan city allow-list. Checked case-insensitively
// as a substring so "Colombo 7" and "Mount Lavinia Beach Rd" pass.
var knownCities = []string{
	"colombo", "dehiwala", "mount lavinia", "moratuwa", "kesbewa",
	"maharagama", "kotte", "kaduwela", "homagama", "battaramulla",
	"ragama", "ja-ela", "negombo", "katunayake", "wattala", "kelaniya",
	"kiribathgoda", "kandy", "galle", "matara", "jaffna", "trincomalee",
	"anuradhapura", "kurunegala", "ratnapura", "badulla", "nuwara eliya",
	"batticaloa", "hambantota", "gampaha", "kalutara", "panadura",
}

// ValidateFeatures checks the raw feature input before the pipeline
// runs. Returns the full list of field errors, empty when valid.
func ValidateFeatures(f model.Features) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(f.City) == "" {
		errs = append(errs, FieldError{"city", "city is required"})
	} else if !f.HasCoords() && !isKnownCity(f.City) {
		// Unrecognized names are acceptable when coordinates pin the
		// location down independently.
		errs = append(errs, FieldError{"city", fmt.Sprintf("unrecognized Sri Lankan city %q; provide coordinates instead", f.City)})
	}

	if f.AskingPrice == nil {
		errs = append(errs, FieldError{"asking_price", "asking_price is required"})
	} else if *f.AskingPrice <= 0 {
		errs = append(errs, FieldError{"asking_price", "asking_price must be positive"})
	}

	if f.Lat != nil && (*f.Lat < -90 || *f.Lat > 90) {
		errs = append(errs, FieldError{"lat", "latitude must be between -90 and 90"})
	}
	if f.Lon != nil && (*f.Lon < -180 || *f.Lon > 180) {
		errs = append(errs, FieldError{"lon", "longitude must be between -180 and 180"})
	}
	if f.Area != nil && (*f.Area <= 0 || *f.Area > 100000) {
		errs = append(errs, FieldError{"area", "area must be in (0, 100000] sq ft"})
	}
	if f.Beds != nil && (*f.Beds < 0 || *f.Beds > 20) {
		errs = append(errs, FieldError{"beds", "beds must be between 0 and 20"})
	}
	if f.Baths != nil && (*f.Baths < 0 || *f.Baths > 20) {
		errs = append(errs, FieldError{"baths", "baths must be between 0 and 20"})
	}
	if f.YearBuilt != nil && (*f.YearBuilt < 1800 || *f.YearBuilt > 2030) {
		errs = append(errs, FieldError{"year_built", "year_built must be between 1800 and 2030"})
	}
	if f.LandSize != nil && *f.LandSize < 0 {
		errs = append(errs, FieldError{"land_size", "land_size must not be negative"})
	}

	return errs
}

func isKnownCity(city string) bool {
	lower := strings.ToLower(city)
	for _, known := range knownCities {
		if strings.Contains(lower, known) {
			return true
		}
	}
	return false
}

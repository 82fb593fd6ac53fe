package model

// Features is the sanitized property-attribute input to the valuation
// pipeline. Optional fields are pointers; absent means unknown. Immutable
// once produced by the request boundary: every stage reads, none write.
type Features struct {
	City         string   `json:"city,omitempty"`
	District     string   `json:"district,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	Area         *float64 `json:"area,omitempty"`       // building area in sq ft
	Beds         *float64 `json:"beds,omitempty"`
	Baths        *float64 `json:"baths,omitempty"`
	YearBuilt    *float64 `json:"year_built,omitempty"`
	LandSize     *float64 `json:"land_size,omitempty"`  // land extent in sq ft
	PropertyType string   `json:"property_type,omitempty"`
	AskingPrice  *float64 `json:"asking_price,omitempty"` // LKR
}

// AreaOrDefault returns the building area, or def when absent/non-positive.
func (f Features) AreaOrDefault(def float64) float64 {
	if f.Area != nil && *f.Area > 0 {
		return *f.Area
	}
	return def
}

// Asking returns the asking price or 0 when absent.
func (f Features) Asking() float64 {
	if f.AskingPrice != nil {
		return *f.AskingPrice
	}
	return 0
}

// HasCoords reports whether both latitude and longitude are present.
func (f Features) HasCoords() bool {
	return f.Lat != nil && f.Lon != nil
}

// Names returns the keys of the fields that are present, for the
// features_used echo in price estimates.
func (f Features) Names() []string {
	var names []string
	if f.City != "" {
		names = append(names, "city")
	}
	if f.District != "" {
		names = append(names, "district")
	}
	if f.Lat != nil {
		names = append(names, "lat")
	}
	if f.Lon != nil {
		names = append(names, "lon")
	}
	if f.Area != nil {
		names = append(names, "area")
	}
	if f.Beds != nil {
		names = append(names, "beds")
	}
	if f.Baths != nil {
		names = append(names, "baths")
	}
	if f.YearBuilt != nil {
		names = append(names, "year_built")
	}
	if f.LandSize != nil {
		names = append(names, "land_size")
	}
	if f.PropertyType != "" {
		names = append(names, "property_type")
	}
	if f.AskingPrice != nil {
		names = append(names, "asking_price")
	}
	return names
}

// Float returns a pointer to v, for building Features literals.
func Float(v float64) *float64 {
	return &v
}

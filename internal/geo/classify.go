package geo

// Urban classification constants.
const (
	ClassUrbanCore = "urban core"
	ClassSuburban  = "suburban"
	ClassExurban   = "exurban"
	ClassRural     = "rural"
)

// Distance thresholds for classification (kilometers).
const (
	urbanCoreCapitalThreshold = 8.0  // within the Colombo core
	suburbanCapitalThreshold  = 30.0 // Colombo commuter belt
	suburbanHubThreshold      = 8.0  // core of a secondary city
	exurbanHubThreshold       = 40.0 // reachable from some major city
)

// Classify returns the urban classification for a resolved context.
// Rules:
//   - urban core: within 8km of Colombo
//   - suburban: within 30km of Colombo, or within 8km of any hub
//   - exurban: within 40km of the nearest hub
//   - rural: everything else, and any context without coordinates
func Classify(ctx Context) string {
	if !ctx.Valid {
		return ClassRural
	}
	if ctx.CapitalKm <= urbanCoreCapitalThreshold {
		return ClassUrbanCore
	}
	if ctx.CapitalKm <= suburbanCapitalThreshold || ctx.NearestKm <= suburbanHubThreshold {
		return ClassSuburban
	}
	if ctx.NearestKm <= exurbanHubThreshold {
		return ClassExurban
	}
	return ClassRural
}

package attendance

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// GeoResult is the distance from a reported point to a location and whether it is inside the radius.
type GeoResult struct {
	Distance float64 `json:"distance"`
	IsValid  bool    `json:"is_valid"`
}

// Distance returns the great-circle distance in meters between two WGS84 points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// Validate checks a reported point against the location's radius. A point exactly on the
// boundary is inside.
func (l Location) Validate(lat, lon float64) GeoResult {
	d := Distance(lat, lon, l.Latitude, l.Longitude)
	return GeoResult{Distance: d, IsValid: d <= float64(l.RadiusMeters)}
}

// Nearest returns the location closest to (lat, lon). On ties the first one wins.
// ok is false when locs is empty.
func Nearest(locs []Location, lat, lon float64) (loc Location, res GeoResult, ok bool) {
	for i, l := range locs {
		r := l.Validate(lat, lon)
		if i == 0 || r.Distance < res.Distance {
			loc, res, ok = l, r, true
		}
	}
	return loc, res, ok
}

// ValidCoordinates reports whether lat/lon are inside the WGS84 range.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 &&
		!math.IsNaN(lat) && !math.IsNaN(lon)
}

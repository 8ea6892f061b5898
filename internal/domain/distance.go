package domain

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DistanceUnit labels every DistanceResult.
const DistanceUnit = "km"

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// HaversineKm returns the great-circle distance in kilometers between two
// points given in decimal degrees, on a sphere of radius EarthRadiusKm.
// The result is not rounded.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := Deg2Rad(lat1)
	lon1Rad := Deg2Rad(lon1)
	lat2Rad := Deg2Rad(lat2)
	lon2Rad := Deg2Rad(lon2)

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// HaversineKmAngles is the same formula written in terms of the
// half-angle haversine of each coordinate pair, hav(θ1-θ2) = sin²((θ1-θ2)/2).
// It agrees with HaversineKm to within floating-point noise.
func HaversineKmAngles(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := Deg2Rad(lat1)
	lat2Rad := Deg2Rad(lat2)

	a := hav(lat1Rad, lat2Rad) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*hav(Deg2Rad(lon1), Deg2Rad(lon2))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func hav(rad1, rad2 float64) float64 {
	s := math.Sin((rad1 - rad2) / 2.0)
	return s * s
}

// Distance computes the distance between two resolved points and pairs it
// with both locations.
func Distance(p1, p2 GeoPoint) DistanceResult {
	return DistanceResult{
		Location1: p1,
		Location2: p2,
		Distance:  HaversineKm(p1.Latitude, p1.Longitude, p2.Latitude, p2.Longitude),
		Unit:      DistanceUnit,
	}
}

package domain

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Column limits of the postcodelatlng table.
const (
	PostcodeMaxLen      = 8
	CoordinatePrecision = 10
	CoordinateScale     = 7
)

// ukPostcodePattern is the boundary format accepted for UK postcodes.
var ukPostcodePattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}$`)

// IsUKPostcode reports whether code is a well-formed UK postcode.
func IsUKPostcode(code string) bool {
	return ukPostcodePattern.MatchString(code)
}

// PostalCode is the persisted mapping of a postcode to its coordinates.
// Coordinates are kept as fixed-precision decimals so repeated reads and
// writes never drift.
type PostalCode struct {
	ID        int64           `json:"id"`
	Postcode  string          `json:"postcode"`
	Latitude  decimal.Decimal `json:"latitude"`
	Longitude decimal.Decimal `json:"longitude"`
}

// MarshalJSON writes coordinates as JSON numbers carrying their exact
// decimal digits.
func (p PostalCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        int64       `json:"id"`
		Postcode  string      `json:"postcode"`
		Latitude  json.Number `json:"latitude"`
		Longitude json.Number `json:"longitude"`
	}{
		ID:        p.ID,
		Postcode:  p.Postcode,
		Latitude:  json.Number(p.Latitude.String()),
		Longitude: json.Number(p.Longitude.String()),
	})
}

// GeoPoint converts the record into floating-point form for computation.
func (p PostalCode) GeoPoint() GeoPoint {
	return GeoPoint{
		Postcode:  p.Postcode,
		Latitude:  p.Latitude.InexactFloat64(),
		Longitude: p.Longitude.InexactFloat64(),
	}
}

// GeoPoint is a postcode label with floating-point coordinates.
type GeoPoint struct {
	Postcode  string  `json:"postcode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceResult pairs two resolved locations with the distance between them.
type DistanceResult struct {
	Location1 GeoPoint `json:"location1"`
	Location2 GeoPoint `json:"location2"`
	Distance  float64  `json:"distance"`
	Unit      string   `json:"unit"`
}

// NormalizeCoordinate rounds a coordinate to the stored scale.
func NormalizeCoordinate(d decimal.Decimal) decimal.Decimal {
	return d.Round(CoordinateScale)
}

var (
	minLatitude  = decimal.NewFromInt(-90)
	maxLatitude  = decimal.NewFromInt(90)
	minLongitude = decimal.NewFromInt(-180)
	maxLongitude = decimal.NewFromInt(180)
)

// ValidateCoordinates checks latitude and longitude bounds.
func ValidateCoordinates(lat, lon decimal.Decimal) error {
	if lat.LessThan(minLatitude) || lat.GreaterThan(maxLatitude) {
		return fmt.Errorf("%w: latitude must be between -90 and 90, got %s", ErrInvalidArgument, lat)
	}
	if lon.LessThan(minLongitude) || lon.GreaterThan(maxLongitude) {
		return fmt.Errorf("%w: longitude must be between -180 and 180, got %s", ErrInvalidArgument, lon)
	}
	return nil
}

// ValidatePostcode checks that code fits the postcode column.
func ValidatePostcode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: postcode is required", ErrInvalidArgument)
	}
	if len(code) > PostcodeMaxLen {
		return fmt.Errorf("%w: postcode %q exceeds %d characters", ErrInvalidArgument, code, PostcodeMaxLen)
	}
	return nil
}

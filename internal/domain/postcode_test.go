package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsUKPostcode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"SW1A 1AA", true},
		{"EC2A 2AH", true},
		{"NW1 6XE", true},
		{"M1 1AE", true},
		{"B338TH", true},
		{"ZZ99 9ZZ", true},
		{"sw1a 1aa", false},
		{"SW1A  1AA", false},
		{"12345", false},
		{"", false},
		{"SW1A 1A", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := IsUKPostcode(tt.code); got != tt.want {
				t.Errorf("IsUKPostcode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon string
		wantErr  bool
	}{
		{"london", "51.5035", "-0.1277", false},
		{"north pole", "90", "180", false},
		{"south pole", "-90", "-180", false},
		{"latitude too large", "90.0000001", "0", true},
		{"latitude too small", "-91", "0", true},
		{"longitude too large", "0", "180.5", true},
		{"longitude too small", "0", "-181", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(decimal.RequireFromString(tt.lat), decimal.RequireFromString(tt.lon))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCoordinates() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestValidatePostcode(t *testing.T) {
	if err := ValidatePostcode("SW1A 1AA"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePostcode(""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty postcode: expected ErrInvalidArgument, got %v", err)
	}
	if err := ValidatePostcode("SW1A 1AAX"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("long postcode: expected ErrInvalidArgument, got %v", err)
	}
}

func TestNormalizeCoordinate(t *testing.T) {
	got := NormalizeCoordinate(decimal.RequireFromString("51.123456789"))
	if want := decimal.RequireFromString("51.1234568"); !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestCodeNotFoundError(t *testing.T) {
	err := NewCodeNotFound("ZZ99 9ZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected CodeNotFoundError to match ErrNotFound")
	}
	var cnf *CodeNotFoundError
	if !errors.As(err, &cnf) || cnf.Code != "ZZ99 9ZZ" {
		t.Errorf("expected code ZZ99 9ZZ, got %v", err)
	}
	if err.Error() != "Postal code not found: ZZ99 9ZZ" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestPageRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     PageRequest
		wantErr bool
		sort    string
	}{
		{"defaults sort", PageRequest{PageIndex: 0, PageSize: 10}, false, SortByPostcode},
		{"latitude sort", PageRequest{PageIndex: 2, PageSize: 1, SortField: "latitude"}, false, SortByLatitude},
		{"negative index", PageRequest{PageIndex: -1, PageSize: 10}, true, ""},
		{"zero size", PageRequest{PageIndex: 0, PageSize: 0}, true, ""},
		{"unknown sort", PageRequest{PageIndex: 0, PageSize: 10, SortField: "city"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if tt.req.SortField != tt.sort {
				t.Errorf("sort field: expected %q, got %q", tt.sort, tt.req.SortField)
			}
		})
	}
}

func TestNewPage_TotalPages(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		pages int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 5, 5},
		{3, math.MaxInt, 1},
		{math.MaxInt64, 1, math.MaxInt},
		{math.MaxInt64, 2, math.MaxInt64/2 + 1},
	}
	for _, tt := range tests {
		p := NewPage(PageRequest{PageSize: tt.size}, nil, tt.total)
		if p.TotalPages != tt.pages {
			t.Errorf("total=%d size=%d: expected %d pages, got %d", tt.total, tt.size, tt.pages, p.TotalPages)
		}
		if p.Items == nil {
			t.Errorf("expected non-nil items")
		}
	}
}

func TestPageRequest_Offset(t *testing.T) {
	tests := []struct {
		index, size int
		want        int64
	}{
		{0, 10, 0},
		{3, 10, 30},
		{1 << 62, 2, math.MaxInt64},
		{1 << 62, 4, math.MaxInt64},
		{1, math.MaxInt, math.MaxInt64},
		{2, math.MaxInt, math.MaxInt64},
	}
	for _, tt := range tests {
		req := PageRequest{PageIndex: tt.index, PageSize: tt.size}
		if got := req.Offset(); got != tt.want {
			t.Errorf("index=%d size=%d: expected offset %d, got %d", tt.index, tt.size, tt.want, got)
		}
	}
}

func TestSortPostalCodes_TieBreakByID(t *testing.T) {
	lat := decimal.RequireFromString("51.5")
	items := []PostalCode{
		{ID: 3, Postcode: "C1 1AA", Latitude: lat},
		{ID: 1, Postcode: "A1 1AA", Latitude: lat},
		{ID: 2, Postcode: "B1 1AA", Latitude: decimal.RequireFromString("50.1")},
	}

	SortPostalCodes(items, SortByLatitude)

	want := []int64{2, 1, 3}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: expected id %d, got %d", i, id, items[i].ID)
		}
	}
}

func TestPostalCode_JSON(t *testing.T) {
	pc := PostalCode{
		ID:        7,
		Postcode:  "NW1 6XE",
		Latitude:  decimal.RequireFromString("51.5322000"),
		Longitude: decimal.RequireFromString("-0.1277"),
	}

	data, err := json.Marshal(pc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"id":7,"postcode":"NW1 6XE","latitude":51.5322,"longitude":-0.1277}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	var back PostalCode
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.ID != pc.ID || !back.Latitude.Equal(pc.Latitude) || !back.Longitude.Equal(pc.Longitude) {
		t.Errorf("round trip changed record: %+v", back)
	}
}

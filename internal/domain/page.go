package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Sort fields accepted by listings.
const (
	SortByPostcode  = "postcode"
	SortByLatitude  = "latitude"
	SortByLongitude = "longitude"
	SortByID        = "id"
)

// DefaultPageSize is used when a caller does not give a size.
const DefaultPageSize = 10

// PageRequest selects one page of an ascending listing.
type PageRequest struct {
	PageIndex int
	PageSize  int
	SortField string
}

// Validate checks the request and fills in the default sort field.
func (r *PageRequest) Validate() error {
	if r.PageIndex < 0 {
		return fmt.Errorf("%w: page index must not be negative, got %d", ErrInvalidArgument, r.PageIndex)
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be at least 1, got %d", ErrInvalidArgument, r.PageSize)
	}
	if r.SortField == "" {
		r.SortField = SortByPostcode
	}
	switch r.SortField {
	case SortByPostcode, SortByLatitude, SortByLongitude, SortByID:
	default:
		return fmt.Errorf("%w: unknown sort field %q", ErrInvalidArgument, r.SortField)
	}
	return nil
}

// Offset returns the number of records before the page, saturating at
// math.MaxInt64 so far-out pages read as empty instead of wrapping.
func (r PageRequest) Offset() int64 {
	if r.PageSize > 0 && int64(r.PageIndex) > math.MaxInt64/int64(r.PageSize) {
		return math.MaxInt64
	}
	return int64(r.PageIndex) * int64(r.PageSize)
}

// Page is one slice of a sorted listing.
type Page struct {
	Items      []PostalCode `json:"content"`
	TotalCount int64        `json:"totalElements"`
	TotalPages int          `json:"totalPages"`
	PageIndex  int          `json:"number"`
	PageSize   int          `json:"size"`
	SortField  string       `json:"sort"`
}

// NewPage assembles a page and computes the page count.
func NewPage(req PageRequest, items []PostalCode, total int64) *Page {
	if items == nil {
		items = []PostalCode{}
	}
	var pages int64
	if size := int64(req.PageSize); size > 0 {
		pages = total / size
		if total%size != 0 {
			pages++
		}
	}
	return &Page{
		Items:      items,
		TotalCount: total,
		TotalPages: int(pages),
		PageIndex:  req.PageIndex,
		PageSize:   req.PageSize,
		SortField:  req.SortField,
	}
}

// SortPostalCodes orders records ascending by field with ties broken by id.
// It is used by stores that cannot sort in the database.
func SortPostalCodes(items []PostalCode, field string) {
	compare := func(a, b PostalCode) int {
		switch field {
		case SortByLatitude:
			return a.Latitude.Cmp(b.Latitude)
		case SortByLongitude:
			return a.Longitude.Cmp(b.Longitude)
		case SortByID:
			return 0
		default:
			return strings.Compare(a.Postcode, b.Postcode)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if c := compare(items[i], items[j]); c != 0 {
			return c < 0
		}
		return items[i].ID < items[j].ID
	})
}

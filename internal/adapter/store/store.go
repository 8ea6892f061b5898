// Package store defines the persistence contract for postcode mappings.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"go.ngs.io/postcodes-api/internal/domain"
)

// PostcodeStore owns the authoritative postcode to coordinate mapping.
// Implementations enforce at most one record per postcode and make the
// existence check and write of Upsert a single atomic step.
type PostcodeStore interface {
	// FindByCode returns the record for code, or nil if none matches exactly.
	FindByCode(ctx context.Context, code string) (*domain.PostalCode, error)

	// Upsert creates the record for code or overwrites its coordinates.
	// A lost race against a concurrent insert is reported as domain.ErrDuplicateRace.
	Upsert(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error)

	// UpdateMapping overwrites the coordinates of an existing record.
	// It returns a domain.CodeNotFoundError and writes nothing if code is absent.
	UpdateMapping(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error)

	// List returns one page sorted ascending by req.SortField, ties by id.
	List(ctx context.Context, req domain.PageRequest) (*domain.Page, error)

	// Close releases any resources held by the store.
	Close() error
}

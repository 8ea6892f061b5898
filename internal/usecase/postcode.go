package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"go.ngs.io/postcodes-api/internal/adapter/store"
	"go.ngs.io/postcodes-api/internal/adapter/store/csv"
	"go.ngs.io/postcodes-api/internal/domain"
)

// MappingRequest carries a postcode and the coordinates to store for it.
type MappingRequest struct {
	Postcode  string
	Latitude  decimal.Decimal
	Longitude decimal.Decimal
}

// Validate checks the postcode length and coordinate bounds.
func (r MappingRequest) Validate() error {
	if err := domain.ValidatePostcode(r.Postcode); err != nil {
		return err
	}
	return domain.ValidateCoordinates(r.Latitude, r.Longitude)
}

// PostcodeUseCase orchestrates postcode lookups, updates and distances.
type PostcodeUseCase struct {
	store  store.PostcodeStore
	logger *slog.Logger
}

// NewPostcodeUseCase creates a new postcode use case.
func NewPostcodeUseCase(s store.PostcodeStore, logger *slog.Logger) *PostcodeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostcodeUseCase{
		store:  s,
		logger: logger,
	}
}

// GetMapping returns the stored mapping for code.
func (uc *PostcodeUseCase) GetMapping(ctx context.Context, code string) (*domain.PostalCode, error) {
	pc, err := uc.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, domain.NewCodeNotFound(code)
	}
	return pc, nil
}

// CreateOrUpdate upserts a mapping. A lost insert race is retried once.
func (uc *PostcodeUseCase) CreateOrUpdate(ctx context.Context, req MappingRequest) (*domain.PostalCode, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pc, err := uc.store.Upsert(ctx, req.Postcode, req.Latitude, req.Longitude)
	if errors.Is(err, domain.ErrDuplicateRace) {
		uc.logger.Warn("retrying upsert after concurrent insert", "postcode", req.Postcode)
		pc, err = uc.store.Upsert(ctx, req.Postcode, req.Latitude, req.Longitude)
	}
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// UpdateMapping overwrites the coordinates of an existing postcode.
func (uc *PostcodeUseCase) UpdateMapping(ctx context.Context, req MappingRequest) (*domain.PostalCode, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return uc.store.UpdateMapping(ctx, req.Postcode, req.Latitude, req.Longitude)
}

// List returns one page of mappings.
func (uc *PostcodeUseCase) List(ctx context.Context, req domain.PageRequest) (*domain.Page, error) {
	return uc.store.List(ctx, req)
}

// Distance resolves both postcodes and returns the great-circle distance
// between them. The second code is not looked up if the first is missing.
func (uc *PostcodeUseCase) Distance(ctx context.Context, code1, code2 string) (*domain.DistanceResult, error) {
	pc1, err := uc.GetMapping(ctx, code1)
	if err != nil {
		return nil, err
	}
	pc2, err := uc.GetMapping(ctx, code2)
	if err != nil {
		return nil, err
	}

	result := domain.Distance(pc1.GeoPoint(), pc2.GeoPoint())
	return &result, nil
}

// ImportStats summarizes a bulk import.
type ImportStats struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Import upserts every valid row from loader. Unparseable or out-of-range
// rows are logged and skipped; store failures abort the import.
func (uc *PostcodeUseCase) Import(ctx context.Context, loader *csv.Loader) (ImportStats, error) {
	var stats ImportStats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := loader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *csv.RowError
		if errors.As(err, &rowErr) {
			uc.logger.Warn("skipping malformed row", "line", rowErr.Line, "err", rowErr.Err)
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, err
		}

		req := MappingRequest{Postcode: row.Postcode, Latitude: row.Latitude, Longitude: row.Longitude}
		if err := req.Validate(); err != nil {
			uc.logger.Warn("skipping invalid row", "line", row.Line, "postcode", row.Postcode, "err", err)
			stats.Skipped++
			continue
		}

		if _, err := uc.CreateOrUpdate(ctx, req); err != nil {
			return stats, fmt.Errorf("line %d: %w", row.Line, err)
		}
		stats.Imported++
	}

	uc.logger.Info("import finished", "imported", stats.Imported, "skipped", stats.Skipped)
	return stats, nil
}

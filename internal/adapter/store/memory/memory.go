// Package memory provides an in-process postcode store.
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"go.ngs.io/postcodes-api/internal/domain"
)

// Store keeps postcode records in a map guarded by a read/write mutex.
// It is only safe for a single process.
type Store struct {
	mu     sync.RWMutex
	byCode map[string]*domain.PostalCode
	nextID int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		byCode: make(map[string]*domain.PostalCode),
	}
}

// FindByCode returns a copy of the record for code.
func (s *Store) FindByCode(ctx context.Context, code string) (*domain.PostalCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	pc, ok := s.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *pc
	return &cp, nil
}

// Upsert creates or overwrites the record for code.
func (s *Store) Upsert(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.byCode[code]
	if !ok {
		s.nextID++
		pc = &domain.PostalCode{ID: s.nextID, Postcode: code}
		s.byCode[code] = pc
	}
	pc.Latitude = domain.NormalizeCoordinate(lat)
	pc.Longitude = domain.NormalizeCoordinate(lon)

	cp := *pc
	return &cp, nil
}

// UpdateMapping overwrites the coordinates of an existing record.
func (s *Store) UpdateMapping(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.byCode[code]
	if !ok {
		return nil, domain.NewCodeNotFound(code)
	}
	pc.Latitude = domain.NormalizeCoordinate(lat)
	pc.Longitude = domain.NormalizeCoordinate(lon)

	cp := *pc
	return &cp, nil
}

// List returns one sorted page of records.
func (s *Store) List(ctx context.Context, req domain.PageRequest) (*domain.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]domain.PostalCode, 0, len(s.byCode))
	for _, pc := range s.byCode {
		all = append(all, *pc)
	}
	s.mu.RUnlock()

	domain.SortPostalCodes(all, req.SortField)

	total := int64(len(all))
	start := req.Offset()
	if start > total {
		start = total
	}
	end := total
	if size := int64(req.PageSize); size < total-start {
		end = start + size
	}

	return domain.NewPage(req, all[start:end], total), nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

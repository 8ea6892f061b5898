// Package postgres stores postcode mappings in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"go.ngs.io/postcodes-api/internal/domain"
)

const (
	createPostcodeTable = `CREATE TABLE IF NOT EXISTS postcodelatlng(
		id bigserial PRIMARY KEY,
		postcode varchar(8) NOT NULL,
		latitude numeric(10, 7) NOT NULL,
		longitude numeric(10, 7) NOT NULL
	);`

	createPostcodeIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_postcodelatlng_postcode ON postcodelatlng(postcode);`

	selectColumns = `id, postcode, latitude::text, longitude::text`

	upsertPostcode = `INSERT INTO postcodelatlng(postcode, latitude, longitude)
		VALUES($1, $2::numeric, $3::numeric)
		ON CONFLICT (postcode) DO UPDATE SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude
		RETURNING ` + selectColumns

	updatePostcode = `UPDATE postcodelatlng SET latitude = $2::numeric, longitude = $3::numeric
		WHERE postcode = $1
		RETURNING ` + selectColumns

	uniqueViolation = "23505"
)

// orderBy maps sort fields to ORDER BY clauses. Postcodes sort bytewise so
// page order does not depend on the server collation.
var orderBy = map[string]string{
	domain.SortByPostcode:  `postcode COLLATE "C", id`,
	domain.SortByLatitude:  `latitude, id`,
	domain.SortByLongitude: `longitude, id`,
	domain.SortByID:        `id`,
}

// Store is a PostcodeStore backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and prepares the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s, err := NewStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates the postcode table on pool if needed.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, createPostcodeTable); err != nil {
		return nil, fmt.Errorf("failed to create postcode table: %w", err)
	}
	if _, err := pool.Exec(ctx, createPostcodeIndex); err != nil {
		return nil, fmt.Errorf("failed to create postcode index: %w", err)
	}
	return &Store{pool: pool}, nil
}

// FindByCode returns the record for code, or nil if none exists.
func (s *Store) FindByCode(ctx context.Context, code string) (*domain.PostalCode, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM postcodelatlng WHERE postcode = $1;", code)
	pc, err := scanPostalCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find postcode %s: %w", code, err)
	}
	return pc, nil
}

// Upsert creates or overwrites the record for code in one statement.
func (s *Store) Upsert(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error) {
	row := s.pool.QueryRow(ctx, upsertPostcode, code,
		domain.NormalizeCoordinate(lat).String(), domain.NormalizeCoordinate(lon).String())
	pc, err := scanPostalCode(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateRace, code)
		}
		return nil, fmt.Errorf("failed to upsert postcode %s: %w", code, err)
	}
	return pc, nil
}

// UpdateMapping overwrites the coordinates of an existing record.
func (s *Store) UpdateMapping(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error) {
	row := s.pool.QueryRow(ctx, updatePostcode, code,
		domain.NormalizeCoordinate(lat).String(), domain.NormalizeCoordinate(lon).String())
	pc, err := scanPostalCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewCodeNotFound(code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update postcode %s: %w", code, err)
	}
	return pc, nil
}

// List reads the count and the page inside one read-only snapshot.
func (s *Store) List(ctx context.Context, req domain.PageRequest) (*domain.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		total int64
		items []domain.PostalCode
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.pool, txOpts, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM postcodelatlng;").Scan(&total); err != nil {
			return err
		}

		query := "SELECT " + selectColumns + " FROM postcodelatlng ORDER BY " + orderBy[req.SortField] + " LIMIT $1 OFFSET $2;"
		rows, err := tx.Query(ctx, query, req.PageSize, req.Offset())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			pc, err := scanPostalCode(rows)
			if err != nil {
				return err
			}
			items = append(items, *pc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list postcodes: %w", err)
	}

	return domain.NewPage(req, items, total), nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanPostalCode(row pgx.Row) (*domain.PostalCode, error) {
	var (
		pc       domain.PostalCode
		lat, lon string
	)
	if err := row.Scan(&pc.ID, &pc.Postcode, &lat, &lon); err != nil {
		return nil, err
	}
	var err error
	if pc.Latitude, err = decimal.NewFromString(lat); err != nil {
		return nil, fmt.Errorf("invalid stored latitude %q for %s: %w", lat, pc.Postcode, err)
	}
	if pc.Longitude, err = decimal.NewFromString(lon); err != nil {
		return nil, fmt.Errorf("invalid stored longitude %q for %s: %w", lon, pc.Postcode, err)
	}
	return &pc, nil
}

// Package sqlite stores postcode mappings in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"go.ngs.io/postcodes-api/internal/domain"
)

// Coordinates are stored as canonical decimal text. SQLite has no
// fixed-point type and NUMERIC affinity would coerce them to REAL.
const (
	createPostcodeTable = `CREATE TABLE IF NOT EXISTS postcodelatlng(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		postcode VARCHAR(8) NOT NULL UNIQUE,
		latitude TEXT NOT NULL,
		longitude TEXT NOT NULL
	);`

	selectColumns = `id, postcode, latitude, longitude`

	upsertPostcode = `INSERT INTO postcodelatlng(postcode, latitude, longitude)
		VALUES(?, ?, ?)
		ON CONFLICT(postcode) DO UPDATE SET latitude = excluded.latitude, longitude = excluded.longitude
		RETURNING ` + selectColumns + `;`

	updatePostcode = `UPDATE postcodelatlng SET latitude = ?, longitude = ?
		WHERE postcode = ?
		RETURNING ` + selectColumns + `;`
)

// Text columns cannot be ordered numerically, so coordinate sorts cast to REAL.
// Scale-7 values survive the cast without reordering.
var orderBy = map[string]string{
	domain.SortByPostcode:  `postcode, id`,
	domain.SortByLatitude:  `CAST(latitude AS REAL), id`,
	domain.SortByLongitude: `CAST(longitude AS REAL), id`,
	domain.SortByID:        `id`,
}

// Store is a PostcodeStore backed by database/sql and go-sqlite3.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	s, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore creates the postcode table on db if needed.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, createPostcodeTable); err != nil {
		return nil, fmt.Errorf("failed to create postcode table: %w", err)
	}
	return &Store{db: db}, nil
}

// FindByCode returns the record for code, or nil if none exists.
func (s *Store) FindByCode(ctx context.Context, code string) (*domain.PostalCode, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM postcodelatlng WHERE postcode = ?;", code)
	pc, err := scanPostalCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find postcode %s: %w", code, err)
	}
	return pc, nil
}

// Upsert creates or overwrites the record for code in one statement.
func (s *Store) Upsert(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error) {
	row := s.db.QueryRowContext(ctx, upsertPostcode, code,
		domain.NormalizeCoordinate(lat).String(), domain.NormalizeCoordinate(lon).String())
	pc, err := scanPostalCode(row)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateRace, code)
		}
		return nil, fmt.Errorf("failed to upsert postcode %s: %w", code, err)
	}
	return pc, nil
}

// UpdateMapping overwrites the coordinates of an existing record.
func (s *Store) UpdateMapping(ctx context.Context, code string, lat, lon decimal.Decimal) (*domain.PostalCode, error) {
	row := s.db.QueryRowContext(ctx, updatePostcode,
		domain.NormalizeCoordinate(lat).String(), domain.NormalizeCoordinate(lon).String(), code)
	pc, err := scanPostalCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewCodeNotFound(code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update postcode %s: %w", code, err)
	}
	return pc, nil
}

// List reads the count and the page inside one transaction.
func (s *Store) List(ctx context.Context, req domain.PageRequest) (*domain.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin listing: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM postcodelatlng;").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count postcodes: %w", err)
	}

	query := "SELECT " + selectColumns + " FROM postcodelatlng ORDER BY " + orderBy[req.SortField] + " LIMIT ? OFFSET ?;"
	rows, err := tx.QueryContext(ctx, query, req.PageSize, req.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list postcodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []domain.PostalCode
	for rows.Next() {
		pc, err := scanPostalCode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan postcode: %w", err)
		}
		items = append(items, *pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list postcodes: %w", err)
	}

	return domain.NewPage(req, items, total), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostalCode(row scanner) (*domain.PostalCode, error) {
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

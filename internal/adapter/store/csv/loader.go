// Package csv reads postcode coordinate datasets in CSV form.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Row is one postcode mapping read from a dataset.
type Row struct {
	Line      int
	Postcode  string
	Latitude  decimal.Decimal
	Longitude decimal.Decimal
}

// RowError describes a data row that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Accepted headers: the UK postcode dataset with its surrogate id, or the bare mapping.
var (
	headerWithID = []string{"id", "postcode", "latitude", "longitude"}
	headerBare   = []string{"postcode", "latitude", "longitude"}
)

// Loader streams postcode rows from a CSV source.
type Loader struct {
	reader *csv.Reader
	offset int // index of the postcode column
}

// NewLoader reads and validates the header of r.
func NewLoader(r io.Reader) (*Loader, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	l := &Loader{reader: reader}
	switch {
	case headerMatches(header, headerWithID):
		l.offset = 1
	case headerMatches(header, headerBare):
		l.offset = 0
	default:
		return nil, fmt.Errorf("invalid CSV header: expected %v or %v, got %v", headerWithID, headerBare, header)
	}
	reader.FieldsPerRecord = len(header)
	return l, nil
}

func headerMatches(header, expected []string) bool {
	if len(header) != len(expected) {
		return false
	}
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) != expected[i] {
			return false
		}
	}
	return true
}

// Next returns the next row. It returns io.EOF at the end of input and a
// *RowError for a malformed row, after which reading may continue.
func (l *Loader) Next() (Row, error) {
	record, err := l.reader.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
			return Row{}, &RowError{Line: parseErr.StartLine, Err: err}
		}
		return Row{}, fmt.Errorf("failed to read CSV record: %w", err)
	}
	// Physical line where the record starts; quoted fields may span lines.
	line, _ := l.reader.FieldPos(0)

	postcode := strings.TrimSpace(record[l.offset])
	latStr := strings.TrimSpace(record[l.offset+1])
	lonStr := strings.TrimSpace(record[l.offset+2])

	lat, err := decimal.NewFromString(latStr)
	if err != nil {
		return Row{}, &RowError{Line: line, Err: fmt.Errorf("invalid latitude for postcode %s: %w", postcode, err)}
	}
	lon, err := decimal.NewFromString(lonStr)
	if err != nil {
		return Row{}, &RowError{Line: line, Err: fmt.Errorf("invalid longitude for postcode %s: %w", postcode, err)}
	}

	return Row{
		Line:      line,
		Postcode:  postcode,
		Latitude:  lat,
		Longitude: lon,
	}, nil
}

// OpenFile opens path and returns a loader over it along with the file to close.
func OpenFile(path string) (*Loader, io.Closer, error) {
	//nolint:gosec // G304: Path comes from operator configuration.
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file %s: %w", path, err)
	}
	l, err := NewLoader(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return l, file, nil
}

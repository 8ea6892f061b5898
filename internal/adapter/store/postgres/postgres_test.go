package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"go.ngs.io/postcodes-api/internal/adapter/store"
	"go.ngs.io/postcodes-api/internal/adapter/store/storetest"
)

// openTestStore connects to TEST_DATABASE_URL and recreates the
// postcodelatlng table. It skips the test when the variable is not set.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS postcodelatlng;"); err != nil {
		pool.Close()
		t.Fatalf("drop table: %v", err)
	}
	s, err := NewStore(ctx, pool)
	if err != nil {
		pool.Close()
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.PostcodeStore {
		return openTestStore(t)
	})
}

func TestStore_RejectsNullCoordinates(t *testing.T) {
	s := openTestStore(t)
	defer func() { _ = s.Close() }()

	_, err := s.pool.Exec(context.Background(),
		"INSERT INTO postcodelatlng(postcode, latitude, longitude) VALUES('N1 1AA', NULL, NULL);")
	if err == nil {
		t.Fatalf("expected NOT NULL violation for missing coordinates")
	}
}

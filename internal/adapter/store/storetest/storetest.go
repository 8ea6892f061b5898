// Package storetest holds the behavioural tests every PostcodeStore must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"go.ngs.io/postcodes-api/internal/adapter/store"
	"go.ngs.io/postcodes-api/internal/domain"
)

// Factory returns an empty store. The store is closed by the caller.
type Factory func(t *testing.T) store.PostcodeStore

// Run executes the full store suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.PostcodeStore)
	}{
		{"FindByCodeMissing", testFindByCodeMissing},
		{"UpsertCreatesThenUpdates", testUpsertCreatesThenUpdates},
		{"UpsertIdempotent", testUpsertIdempotent},
		{"UpsertRoundsToScale", testUpsertRoundsToScale},
		{"UpdateMappingMissing", testUpdateMappingMissing},
		{"UpdateMappingExisting", testUpdateMappingExisting},
		{"ListRejectsBadPage", testListRejectsBadPage},
		{"ListPagesCoverAll", testListPagesCoverAll},
		{"ListSortsByLatitude", testListSortsByLatitude},
		{"ListHugePageIndex", testListHugePageIndex},
		{"ListHugePageSize", testListHugePageSize},
		{"ConcurrentUpserts", testConcurrentUpserts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer func() { _ = s.Close() }()
			tt.fn(t, s)
		})
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustUpsert(t *testing.T, s store.PostcodeStore, code, lat, lon string) *domain.PostalCode {
	t.Helper()
	pc, err := s.Upsert(context.Background(), code, dec(lat), dec(lon))
	if err != nil {
		t.Fatalf("Upsert(%s): %v", code, err)
	}
	return pc
}

func testFindByCodeMissing(t *testing.T, s store.PostcodeStore) {
	pc, err := s.FindByCode(context.Background(), "ZZ99 9ZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc != nil {
		t.Errorf("expected no record, got %+v", pc)
	}
}

func testUpsertCreatesThenUpdates(t *testing.T, s store.PostcodeStore) {
	ctx := context.Background()

	created := mustUpsert(t, s, "NW1 6XE", "51.5322", "-0.1277")
	if created.Postcode != "NW1 6XE" || !created.Latitude.Equal(dec("51.5322")) {
		t.Fatalf("unexpected created record: %+v", created)
	}

	updated := mustUpsert(t, s, "NW1 6XE", "51.5330", "-0.1280")
	if updated.ID != created.ID {
		t.Errorf("expected update in place (id %d), got id %d", created.ID, updated.ID)
	}

	found, err := s.FindByCode(ctx, "NW1 6XE")
	if err != nil || found == nil {
		t.Fatalf("FindByCode: %v, %v", found, err)
	}
	if !found.Latitude.Equal(dec("51.533")) || !found.Longitude.Equal(dec("-0.128")) {
		t.Errorf("expected new coordinates, got %s,%s", found.Latitude, found.Longitude)
	}

	page, err := s.List(ctx, domain.PageRequest{PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("expected exactly one record, got %d", page.TotalCount)
	}
}

func testUpsertIdempotent(t *testing.T, s store.PostcodeStore) {
	first := mustUpsert(t, s, "SW1A 1AA", "51.5035", "-0.1277")
	second := mustUpsert(t, s, "SW1A 1AA", "51.5035", "-0.1277")

	if first.ID != second.ID || !first.Latitude.Equal(second.Latitude) || !first.Longitude.Equal(second.Longitude) {
		t.Errorf("repeated upsert changed the record: %+v vs %+v", first, second)
	}

	page, err := s.List(context.Background(), domain.PageRequest{PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("expected one record, got %d", page.TotalCount)
	}
}

func testUpsertRoundsToScale(t *testing.T, s store.PostcodeStore) {
	mustUpsert(t, s, "M1 1AE", "53.123456789", "-2.987654321")

	found, err := s.FindByCode(context.Background(), "M1 1AE")
	if err != nil || found == nil {
		t.Fatalf("FindByCode: %v, %v", found, err)
	}
	if !found.Latitude.Equal(dec("53.1234568")) || !found.Longitude.Equal(dec("-2.9876543")) {
		t.Errorf("expected coordinates at scale 7, got %s,%s", found.Latitude, found.Longitude)
	}
}

func testUpdateMappingMissing(t *testing.T, s store.PostcodeStore) {
	ctx := context.Background()

	_, err := s.UpdateMapping(ctx, "ZZ99 9ZZ", dec("1"), dec("1"))
	var cnf *domain.CodeNotFoundError
	if !errors.As(err, &cnf) || cnf.Code != "ZZ99 9ZZ" {
		t.Fatalf("expected CodeNotFoundError for ZZ99 9ZZ, got %v", err)
	}

	found, err := s.FindByCode(ctx, "ZZ99 9ZZ")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if found != nil {
		t.Errorf("strict update must not create a record, found %+v", found)
	}
}

func testUpdateMappingExisting(t *testing.T, s store.PostcodeStore) {
	created := mustUpsert(t, s, "EC2A 2AH", "51.5200", "-0.0800")

	updated, err := s.UpdateMapping(context.Background(), "EC2A 2AH", dec("51.5210"), dec("-0.0810"))
	if err != nil {
		t.Fatalf("UpdateMapping: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("expected id %d, got %d", created.ID, updated.ID)
	}
	if !updated.Latitude.Equal(dec("51.521")) || !updated.Longitude.Equal(dec("-0.081")) {
		t.Errorf("unexpected coordinates %s,%s", updated.Latitude, updated.Longitude)
	}
}

func testListRejectsBadPage(t *testing.T, s store.PostcodeStore) {
	bad := []domain.PageRequest{
		{PageIndex: -1, PageSize: 10},
		{PageIndex: 0, PageSize: 0},
		{PageIndex: 0, PageSize: -3},
		{PageIndex: 0, PageSize: 10, SortField: "name; DROP TABLE"},
	}
	for _, req := range bad {
		if _, err := s.List(context.Background(), req); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("List(%+v): expected ErrInvalidArgument, got %v", req, err)
		}
	}
}

func testListPagesCoverAll(t *testing.T, s store.PostcodeStore) {
	ctx := context.Background()
	const n = 23
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("AB%d %dCD", (i*7)%23+1, i%10)
		mustUpsert(t, s, code, "51.5", fmt.Sprintf("-0.%03d", i))
	}

	for _, size := range []int{1, 4, 10, 23, 50} {
		first, err := s.List(ctx, domain.PageRequest{PageIndex: 0, PageSize: size})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if first.TotalCount != n {
			t.Fatalf("size %d: expected total %d, got %d", size, n, first.TotalCount)
		}

		seen := make(map[string]bool)
		var all []domain.PostalCode
		for p := 0; p < first.TotalPages; p++ {
			page, err := s.List(ctx, domain.PageRequest{PageIndex: p, PageSize: size})
			if err != nil {
				t.Fatalf("List page %d: %v", p, err)
			}
			for _, pc := range page.Items {
				if seen[pc.Postcode] {
					t.Fatalf("size %d: duplicate %s across pages", size, pc.Postcode)
				}
				seen[pc.Postcode] = true
			}
			all = append(all, page.Items...)
		}

		if int64(len(all)) != first.TotalCount {
			t.Errorf("size %d: pages yielded %d records, want %d", size, len(all), first.TotalCount)
		}
		for i := 1; i < len(all); i++ {
			if all[i-1].Postcode > all[i].Postcode {
				t.Errorf("size %d: not sorted at %d: %s > %s", size, i, all[i-1].Postcode, all[i].Postcode)
			}
		}

		past, err := s.List(ctx, domain.PageRequest{PageIndex: first.TotalPages, PageSize: size})
		if err != nil {
			t.Fatalf("List past end: %v", err)
		}
		if len(past.Items) != 0 {
			t.Errorf("size %d: expected empty page past the end, got %d items", size, len(past.Items))
		}
	}
}

func testListHugePageIndex(t *testing.T, s store.PostcodeStore) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		mustUpsert(t, s, fmt.Sprintf("E%d 1AA", i+1), "51.5", "-0.1")
	}

	for _, req := range []domain.PageRequest{
		{PageIndex: 1 << 62, PageSize: 4},
		{PageIndex: 1 << 62, PageSize: 2},
		{PageIndex: math.MaxInt, PageSize: math.MaxInt},
	} {
		page, err := s.List(ctx, req)
		if err != nil {
			t.Fatalf("List(%+v): %v", req, err)
		}
		if len(page.Items) != 0 {
			t.Errorf("List(%+v): expected an empty page, got %d items", req, len(page.Items))
		}
		if page.TotalCount != 3 || page.TotalPages < 1 {
			t.Errorf("List(%+v): unexpected metadata total=%d pages=%d", req, page.TotalCount, page.TotalPages)
		}
	}
}

func testListHugePageSize(t *testing.T, s store.PostcodeStore) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		mustUpsert(t, s, fmt.Sprintf("F%d 1AA", i+1), "51.5", "-0.1")
	}

	page, err := s.List(ctx, domain.PageRequest{PageSize: math.MaxInt})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 3 || page.TotalPages != 1 {
		t.Errorf("expected all 3 items on a single page, got %d items and %d pages", len(page.Items), page.TotalPages)
	}
}

func testListSortsByLatitude(t *testing.T, s store.PostcodeStore) {
	ctx := context.Background()
	a := mustUpsert(t, s, "A1 1AA", "52.0", "0")
	b := mustUpsert(t, s, "B1 1AA", "50.0", "0")
	c := mustUpsert(t, s, "C1 1AA", "52.0", "0")
	d := mustUpsert(t, s, "D1 1AA", "-10.5", "0")

	page, err := s.List(ctx, domain.PageRequest{PageSize: 10, SortField: domain.SortByLatitude})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []int64{d.ID, b.ID, a.ID, c.ID}
	if len(page.Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(page.Items))
	}
	for i, id := range want {
		if page.Items[i].ID != id {
			t.Errorf("position %d: expected id %d (%v), got id %d", i, id, want, page.Items[i].ID)
		}
	}
}

func testConcurrentUpserts(t *testing.T, s store.PostcodeStore) {
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lat := dec(fmt.Sprintf("51.%d", i))
			_, err := s.Upsert(ctx, "W1A 0AX", lat, dec("-0.1"))
			if errors.Is(err, domain.ErrDuplicateRace) {
				_, err = s.Upsert(ctx, "W1A 0AX", lat, dec("-0.1"))
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent upsert: %v", err)
		}
	}

	page, err := s.List(ctx, domain.PageRequest{PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("expected a single record after concurrent upserts, got %d", page.TotalCount)
	}
}

package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridwatch/outages/internal/builder"
	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/model"
	"github.com/gridwatch/outages/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func obs(period time.Time, facility, name, generator string) model.RawObservation {
	return model.RawObservation{
		Period:       period,
		Facility:     facility,
		FacilityName: name,
		Generator:    generator,
		OutageMW:     100,
	}
}

// newTestService builds a modeled store from raw observations and opens a
// query service over it.
func newTestService(t *testing.T, raw []model.RawObservation) (*Service, *store.ModeledStore) {
	t.Helper()

	modeled := store.NewModeledStore(filepath.Join(t.TempDir(), "modeled"))
	if raw != nil {
		tables, _, err := builder.Build(raw)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := store.WriteTables(modeled.Dir(), tables); err != nil {
			t.Fatalf("WriteTables: %v", err)
		}
	}

	svc, err := New(modeled)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc, modeled
}

func defaultRaw() []model.RawObservation {
	return []model.RawObservation{
		obs(day(2024, 1, 1), "1715", "Browns Ferry", "1"),
		obs(day(2024, 1, 2), "1715", "Browns Ferry", "1"),
		obs(day(2024, 2, 10), "1715", "Browns Ferry", "2"),
		obs(day(2024, 3, 5), "6022", "Palo Verde", "1"),
	}
}

func TestQueryMissingModeledStore(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, _, err := svc.Query(context.Background(), Params{Page: 1, Limit: 10})
	if !apperrors.Is(err, apperrors.ErrModeledMissing) {
		t.Fatalf("err = %v, want ErrModeledMissing", err)
	}
}

func TestQueryReturnsJoinedView(t *testing.T) {
	svc, _ := newTestService(t, defaultRaw())

	rows, total, err := svc.Query(context.Background(), Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("total/rows = %d/%d, want 3/3", total, len(rows))
	}

	// Newest start first.
	if !rows[0].Start.Equal(day(2024, 3, 5)) {
		t.Errorf("rows[0].Start = %v, want 2024-03-05", rows[0].Start)
	}
	if rows[0].PlantName != "Palo Verde" || rows[0].EIAFacilityID != "6022" {
		t.Errorf("rows[0] dims = %q/%q, want Palo Verde/6022", rows[0].PlantName, rows[0].EIAFacilityID)
	}
	if rows[0].DurationHours != 24 {
		t.Errorf("rows[0].DurationHours = %v, want 24", rows[0].DurationHours)
	}

	// The two-day run collapsed into one 48h event.
	last := rows[2]
	if !last.Start.Equal(day(2024, 1, 1)) || last.DurationHours != 48 {
		t.Errorf("rows[2] = start %v dur %v, want 2024-01-01 / 48", last.Start, last.DurationHours)
	}
	if !last.Date.Equal(day(2024, 1, 1)) {
		t.Errorf("rows[2].Date = %v, want joined dim_date value", last.Date)
	}
}

func TestQueryFilters(t *testing.T) {
	svc, _ := newTestService(t, defaultRaw())
	ctx := context.Background()

	rows, total, err := svc.Query(ctx, Params{Page: 1, Limit: 10, FacilityID: "1715"})
	if err != nil {
		t.Fatalf("facility filter: %v", err)
	}
	if total != 2 {
		t.Errorf("facility filter total = %d, want 2", total)
	}

	rows, total, err = svc.Query(ctx, Params{Page: 1, Limit: 10, FacilityID: "1715", Generator: "2"})
	if err != nil {
		t.Fatalf("generator filter: %v", err)
	}
	if total != 1 || rows[0].Generator != "2" {
		t.Errorf("generator filter total = %d, want the single unit-2 event", total)
	}

	// Substring, case-insensitive.
	_, total, err = svc.Query(ctx, Params{Page: 1, Limit: 10, PlantName: "palo"})
	if err != nil {
		t.Fatalf("name filter: %v", err)
	}
	if total != 1 {
		t.Errorf("name filter total = %d, want 1", total)
	}

	_, total, err = svc.Query(ctx, Params{Page: 1, Limit: 10, PlantKey: 2})
	if err != nil {
		t.Fatalf("plant key filter: %v", err)
	}
	if total != 1 {
		t.Errorf("plant key filter total = %d, want 1", total)
	}

	start := day(2024, 2, 1)
	end := day(2024, 2, 28)
	_, total, err = svc.Query(ctx, Params{Page: 1, Limit: 10, StartDate: &start, EndDate: &end})
	if err != nil {
		t.Fatalf("date filter: %v", err)
	}
	if total != 1 {
		t.Errorf("date filter total = %d, want 1 (only the February event)", total)
	}

	// Boundary dates are inclusive.
	exact := day(2024, 3, 5)
	_, total, err = svc.Query(ctx, Params{Page: 1, Limit: 10, StartDate: &exact, EndDate: &exact})
	if err != nil {
		t.Fatalf("boundary filter: %v", err)
	}
	if total != 1 {
		t.Errorf("boundary filter total = %d, want 1", total)
	}
}

func TestQueryEmptyResultIsNotAnError(t *testing.T) {
	svc, _ := newTestService(t, defaultRaw())

	rows, total, err := svc.Query(context.Background(), Params{Page: 1, Limit: 10, FacilityID: "0000"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Errorf("total/rows = %d/%d, want 0/0", total, len(rows))
	}
}

func TestQueryPagination(t *testing.T) {
	svc, _ := newTestService(t, defaultRaw())
	ctx := context.Background()

	page1, total, err := svc.Query(ctx, Params{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if total != 3 || len(page1) != 2 {
		t.Fatalf("page 1 total/rows = %d/%d, want 3/2", total, len(page1))
	}

	page2, total, err := svc.Query(ctx, Params{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if total != 3 || len(page2) != 1 {
		t.Fatalf("page 2 total/rows = %d/%d, want 3/1", total, len(page2))
	}
	if page1[0].OutageKey == page2[0].OutageKey {
		t.Error("page 2 repeats page 1 rows")
	}

	// A page past the end is empty, total unchanged.
	past, total, err := svc.Query(ctx, Params{Page: 5, Limit: 2})
	if err != nil {
		t.Fatalf("page past end: %v", err)
	}
	if total != 3 || len(past) != 0 {
		t.Errorf("past-end total/rows = %d/%d, want 3/0", total, len(past))
	}
}

func TestQueryValidation(t *testing.T) {
	svc, _ := newTestService(t, defaultRaw())
	ctx := context.Background()

	if _, _, err := svc.Query(ctx, Params{Page: 0, Limit: 10}); !apperrors.Is(err, apperrors.ErrQuery) {
		t.Errorf("page 0 err = %v, want ErrQuery", err)
	}
	if _, _, err := svc.Query(ctx, Params{Page: 1, Limit: 0}); !apperrors.Is(err, apperrors.ErrQuery) {
		t.Errorf("limit 0 err = %v, want ErrQuery", err)
	}

	start := day(2024, 3, 1)
	end := day(2024, 1, 1)
	if _, _, err := svc.Query(ctx, Params{Page: 1, Limit: 10, StartDate: &start, EndDate: &end}); !apperrors.Is(err, apperrors.ErrQuery) {
		t.Errorf("inverted range err = %v, want ErrQuery", err)
	}

	// Oversized limits are clamped, not rejected.
	if _, _, err := svc.Query(ctx, Params{Page: 1, Limit: MaxLimit + 500}); err != nil {
		t.Errorf("oversized limit err = %v, want clamp", err)
	}
}

func TestInvalidateReloadsView(t *testing.T) {
	svc, modeled := newTestService(t, defaultRaw())
	ctx := context.Background()

	_, total, err := svc.Query(ctx, Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}

	// Swap in a smaller build behind the service's back.
	tables, _, err := builder.Build(defaultRaw()[:1])
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	staging := modeled.NewStaging()
	if err := store.WriteTables(staging, tables); err != nil {
		t.Fatalf("WriteTables: %v", err)
	}
	if err := modeled.Swap(staging); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	// Without invalidation the cached view still answers.
	_, total, err = svc.Query(ctx, Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want stale 3 before invalidation", total)
	}

	svc.Invalidate()

	_, total, err = svc.Query(ctx, Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Query after invalidate: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1 from the new store", total)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-05")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !got.Equal(day(2024, 3, 5)) {
		t.Errorf("ParseDate = %v, want 2024-03-05 UTC midnight", got)
	}

	if _, err := ParseDate("03/05/2024"); !apperrors.Is(err, apperrors.ErrQuery) {
		t.Errorf("bad format err = %v, want ErrQuery", err)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t, defaultRaw())
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CachedRows != 3 || !stats.Cached {
		t.Errorf("cached rows/flag = %d/%v, want 3/true", stats.CachedRows, stats.Cached)
	}
	if stats.DurationP50 <= 0 || stats.DurationP99 < stats.DurationP50 {
		t.Errorf("percentiles = p50 %v p99 %v, want positive and ordered", stats.DurationP50, stats.DurationP99)
	}

	if _, _, err := svc.Query(ctx, Params{Page: 1, Limit: 2}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	stats, err = svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.QueriesServed != 1 || stats.RowsReturned != 2 {
		t.Errorf("served/returned = %d/%d, want 1/2", stats.QueriesServed, stats.RowsReturned)
	}
}

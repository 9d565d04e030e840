// Package query serves filtered, paginated reads over the modeled store.
//
// The expensive fact-dimension join runs once in DuckDB directly over the
// Parquet files and is cached in memory. The cache is dropped only when the
// refresh orchestrator swaps in a new modeled store; there is no timer and
// no mtime polling. Many readers share one snapshot; a reader never observes
// a half-loaded view.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/model"
	"github.com/gridwatch/outages/internal/store"
)

// Pagination bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// OutageView is one row of the joined fact + dimension view.
type OutageView struct {
	OutageKey     int64     `json:"outage_key"`
	OutageID      string    `json:"outage_id"`
	PlantKey      int64     `json:"plant_key"`
	EIAFacilityID string    `json:"eia_facility_id"`
	PlantName     string    `json:"plant_name"`
	Generator     string    `json:"generator"`
	DateKey       int64     `json:"date_key"`
	Date          time.Time `json:"date"`
	Start         time.Time `json:"outage_start"`
	End           time.Time `json:"outage_end"`
	DurationHours float64   `json:"outage_duration_hours"`
}

// Params are the supported filters plus pagination.
type Params struct {
	FacilityID string
	Generator  string
	PlantName  string
	PlantKey   int64
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
}

// Service answers reads against a cached joined view of the modeled store.
type Service struct {
	mu      sync.RWMutex
	db      *sql.DB
	modeled *store.ModeledStore

	view   []OutageView
	loaded bool

	queriesServed int64
	rowsReturned  int64
}

// New creates a query service over the modeled store.
func New(modeled *store.ModeledStore) (*Service, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Service{db: db, modeled: modeled}, nil
}

// Close closes the underlying DuckDB handle.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Invalidate drops the cached view. Called by the refresh orchestrator after
// a successful swap.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = nil
	s.loaded = false
	logging.Component("query").Info("cache invalidated")
}

// Query applies filters and pagination to the cached view.
// The returned total reflects the whole filtered set, not just the page.
func (s *Service) Query(ctx context.Context, p Params) ([]OutageView, int, error) {
	if p.Page < 1 {
		return nil, 0, apperrors.Wrap(apperrors.ErrQuery, "page must be >= 1, got %d", p.Page)
	}
	if p.Limit < 1 {
		return nil, 0, apperrors.Wrap(apperrors.ErrQuery, "limit must be >= 1, got %d", p.Limit)
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return nil, 0, apperrors.Wrap(apperrors.ErrQuery, "end_date before start_date")
	}

	view, err := s.ensure(ctx)
	if err != nil {
		return nil, 0, err
	}

	filtered := make([]OutageView, 0, len(view))
	for i := range view {
		if matches(&view[i], &p) {
			filtered = append(filtered, view[i])
		}
	}

	total := len(filtered)
	start := (p.Page - 1) * p.Limit
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	page := filtered[start:end]

	s.mu.Lock()
	s.queriesServed++
	s.rowsReturned += int64(len(page))
	s.mu.Unlock()

	return page, total, nil
}

// matches applies exact, substring, and date-range filters to one row.
func matches(v *OutageView, p *Params) bool {
	if p.FacilityID != "" && v.EIAFacilityID != p.FacilityID {
		return false
	}
	if p.Generator != "" && v.Generator != p.Generator {
		return false
	}
	if p.PlantKey > 0 && v.PlantKey != p.PlantKey {
		return false
	}
	if p.PlantName != "" && !strings.Contains(strings.ToLower(v.PlantName), strings.ToLower(p.PlantName)) {
		return false
	}

	startDay := model.Normalize(v.Start)
	if p.StartDate != nil && startDay.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && startDay.After(*p.EndDate) {
		return false
	}
	return true
}

// ensure returns the cached view, loading it on first use or after
// invalidation. Readers proceed concurrently; only the load takes the write
// lock.
func (s *Service) ensure(ctx context.Context) ([]OutageView, error) {
	s.mu.RLock()
	if s.loaded {
		view := s.view
		s.mu.RUnlock()
		return view, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.view, nil
	}

	if !s.modeled.Exists() {
		return nil, apperrors.Wrap(apperrors.ErrModeledMissing, "%s", s.modeled.Dir())
	}

	view, err := s.loadView(ctx)
	if err != nil {
		return nil, err
	}

	s.view = view
	s.loaded = true
	logging.Component("query").Info("joined view cached", "rows", len(view))
	return view, nil
}

// loadView joins the fact table with both dimensions in DuckDB, reading the
// Parquet files in place, ordered for stable pagination.
func (s *Service) loadView(ctx context.Context) ([]OutageView, error) {
	plantPath, datePath, factPath := s.modeled.TablePaths()

	q := `
		SELECT
			f.outage_key, f.outage_id, f.plant_key,
			coalesce(p.eia_facility_id, ''), coalesce(p.plant_name, ''),
			f.generator, f.date_key, coalesce(d.date_ms, 0),
			f.start_ms, f.end_ms, f.duration_hours
		FROM read_parquet($1) f
		LEFT JOIN read_parquet($2) p ON f.plant_key = p.plant_key
		LEFT JOIN read_parquet($3) d ON f.date_key = d.date_key
		ORDER BY f.start_ms DESC, p.eia_facility_id ASC, f.generator ASC
	`

	rows, err := s.db.QueryContext(ctx, q, factPath, plantPath, datePath)
	if err != nil {
		return nil, fmt.Errorf("join modeled tables: %w", err)
	}
	defer rows.Close()

	var view []OutageView
	for rows.Next() {
		var v OutageView
		var dateMs, startMs, endMs int64

		err := rows.Scan(
			&v.OutageKey, &v.OutageID, &v.PlantKey,
			&v.EIAFacilityID, &v.PlantName,
			&v.Generator, &v.DateKey, &dateMs,
			&startMs, &endMs, &v.DurationHours,
		)
		if err != nil {
			return nil, fmt.Errorf("scan view row: %w", err)
		}

		v.Date = time.UnixMilli(dateMs).UTC()
		v.Start = time.UnixMilli(startMs).UTC()
		v.End = time.UnixMilli(endMs).UTC()
		view = append(view, v)
	}
	return view, rows.Err()
}

// ParseDate parses a YYYY-MM-DD filter value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrQuery, "invalid date %q, want YYYY-MM-DD", s)
	}
	return model.Normalize(t), nil
}

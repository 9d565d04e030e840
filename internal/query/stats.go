package query

import (
	"context"

	"github.com/DataDog/sketches-go/ddsketch"
)

// ServiceStats summarizes the cached view and read activity.
type ServiceStats struct {
	CachedRows    int     `json:"cached_rows"`
	Cached        bool    `json:"cached"`
	QueriesServed int64   `json:"queries_served"`
	RowsReturned  int64   `json:"rows_returned"`
	DurationP50   float64 `json:"duration_hours_p50"`
	DurationP90   float64 `json:"duration_hours_p90"`
	DurationP99   float64 `json:"duration_hours_p99"`
}

// Stats reports cache state plus outage-duration percentiles over the
// cached view, sketched with DDSketch at 1% relative accuracy. Loads the
// view if needed.
func (s *Service) Stats(ctx context.Context) (ServiceStats, error) {
	view, err := s.ensure(ctx)
	if err != nil {
		return ServiceStats{}, err
	}

	s.mu.RLock()
	stats := ServiceStats{
		CachedRows:    len(view),
		Cached:        s.loaded,
		QueriesServed: s.queriesServed,
		RowsReturned:  s.rowsReturned,
	}
	s.mu.RUnlock()

	if len(view) == 0 {
		return stats, nil
	}

	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return stats, err
	}
	for i := range view {
		if err := sketch.Add(view[i].DurationHours); err != nil {
			return stats, err
		}
	}

	if p50, err := sketch.GetValueAtQuantile(0.5); err == nil {
		stats.DurationP50 = p50
	}
	if p90, err := sketch.GetValueAtQuantile(0.9); err == nil {
		stats.DurationP90 = p90
	}
	if p99, err := sketch.GetValueAtQuantile(0.99); err == nil {
		stats.DurationP99 = p99
	}
	return stats, nil
}

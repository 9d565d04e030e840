package connector

import (
	"context"
	"time"

	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/model"
	"github.com/gridwatch/outages/internal/store"
)

// Config controls a single extraction run.
type Config struct {
	// Incremental merges new rows into an existing raw store instead of
	// replacing it.
	Incremental bool

	// EarlyStop halts paging once a whole page holds only periods at or
	// below the pre-run maximum and contributed no new rows. Relies on the
	// upstream newest-first ordering; a pure optimization. Off by default
	// since the ordering cannot be verified.
	EarlyStop bool

	// PageSize is the page length requested from upstream.
	PageSize int

	// MaxRecords caps rows collected in one run. Zero means unlimited.
	MaxRecords int
}

// Result summarizes one extraction run.
type Result struct {
	Pages        int
	Fetched      int
	New          int
	Skipped      int
	EarlyStopped bool
	Written      bool
	Total        int
}

// Connector pages through the upstream feed and merges rows into the raw
// store. The store is only written after the full page loop succeeds, so a
// mid-run failure never corrupts prior state.
type Connector struct {
	client *Client
	raw    *store.RawStore
	cfg    Config
}

// New creates a connector.
func New(client *Client, raw *store.RawStore, cfg Config) *Connector {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5000
	}
	return &Connector{client: client, raw: raw, cfg: cfg}
}

// Extract runs the full extraction: page, validate, dedup, write-at-end.
func (c *Connector) Extract(ctx context.Context) (Result, error) {
	log := logging.Component("connector")
	var res Result

	var existing []model.RawObservation
	existingKeys := make(map[string]struct{})
	var existingMax time.Time
	incremental := false

	if c.cfg.Incremental && c.raw.Exists() {
		loaded, err := c.raw.Load()
		if err != nil {
			// Unreadable prior state falls back to a full extract.
			log.Warn("failed to load existing raw store, falling back to full extract", "error", err)
		} else {
			existing = loaded
			incremental = true
			for i := range existing {
				existingKeys[existing[i].Key()] = struct{}{}
				if existing[i].Period.After(existingMax) {
					existingMax = existing[i].Period
				}
			}
			log.Info("incremental mode enabled",
				"existing_rows", len(existing), "max_period", existingMax.Format("2006-01-02"))
		}
	}

	// Full-mode accumulation dedups by natural key, last page wins.
	collected := make([]model.RawObservation, 0)
	collectedIdx := make(map[string]int)
	var newRows []model.RawObservation

	offset := 0
	for {
		page, err := c.client.FetchPage(ctx, offset, c.cfg.PageSize)
		if err != nil {
			return res, err
		}

		res.Pages++
		res.Fetched += page.Fetched
		res.Skipped += page.Skipped

		if page.Fetched == 0 {
			log.Info("pagination complete, upstream returned empty page", "offset", offset)
			break
		}

		if incremental {
			pageNew := 0
			var pageMax time.Time
			for i := range page.Rows {
				row := page.Rows[i]
				if row.Period.After(pageMax) {
					pageMax = row.Period
				}
				key := row.Key()
				if _, dup := existingKeys[key]; dup {
					continue
				}
				existingKeys[key] = struct{}{}
				newRows = append(newRows, row)
				pageNew++
			}
			res.New += pageNew

			if c.cfg.EarlyStop && !existingMax.IsZero() && !pageMax.IsZero() &&
				!pageMax.After(existingMax) && pageNew == 0 {
				log.Info("early stop, page holds only known periods", "offset", offset)
				res.EarlyStopped = true
				break
			}
		} else {
			for i := range page.Rows {
				key := page.Rows[i].Key()
				if idx, dup := collectedIdx[key]; dup {
					collected[idx] = page.Rows[i]
					continue
				}
				collectedIdx[key] = len(collected)
				collected = append(collected, page.Rows[i])
			}
		}

		offset += c.cfg.PageSize

		total := len(collected) + len(newRows)
		if c.cfg.MaxRecords > 0 && total >= c.cfg.MaxRecords {
			log.Info("reached max records limit", "limit", c.cfg.MaxRecords)
			overflow := total - c.cfg.MaxRecords
			if overflow > 0 {
				if incremental {
					newRows = trimTail(newRows, overflow)
				} else {
					collected = trimTail(collected, overflow)
				}
			}
			break
		}

		if page.Fetched < c.cfg.PageSize {
			log.Info("pagination complete, short page", "records", page.Fetched)
			break
		}
	}

	if incremental {
		if len(newRows) == 0 {
			log.Info("incremental run found no new rows, store unchanged")
			res.Total = len(existing)
			return res, nil
		}
		merged := append(existing, newRows...)
		if err := c.raw.Save(merged); err != nil {
			return res, apperrors.Wrap(apperrors.ErrExtraction, "save merged store: %v", err)
		}
		res.Written = true
		res.Total = len(merged)
		log.Info("incremental merge saved", "new_rows", len(newRows), "total_rows", len(merged))
		return res, nil
	}

	if len(collected) == 0 {
		log.Warn("extraction collected zero rows, nothing to save")
		return res, nil
	}

	if err := c.raw.Save(collected); err != nil {
		return res, apperrors.Wrap(apperrors.ErrExtraction, "save raw store: %v", err)
	}
	res.Written = true
	res.New = len(collected)
	res.Total = len(collected)
	log.Info("full extract saved", "rows", len(collected), "pages", res.Pages, "skipped", res.Skipped)
	return res, nil
}

// trimTail drops the last n rows collected past the record cap.
func trimTail(rows []model.RawObservation, n int) []model.RawObservation {
	if n >= len(rows) {
		return rows[:0]
	}
	return rows[:len(rows)-n]
}

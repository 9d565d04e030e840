package api

import (
	"net/http"
	"strconv"

	"github.com/gridwatch/outages/config"
	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/model"
	"github.com/gridwatch/outages/internal/query"
	"github.com/gridwatch/outages/internal/refresh"
)

// DataResponse is the /data payload.
type DataResponse struct {
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
	Data  []query.OutageView `json:"data"`
}

// RefreshResponse is the /refresh payload.
type RefreshResponse struct {
	Status       string          `json:"status"`
	RawRows      int             `json:"raw_rows"`
	NewRows      int             `json:"new_rows"`
	SkippedRows  int             `json:"skipped_rows"`
	EarlyStopped bool            `json:"early_stopped"`
	DimPlant     int             `json:"dim_plant"`
	DimDate      int             `json:"dim_date"`
	FactOutage   int             `json:"fact_outage"`
	DurationMs   int64           `json:"duration_ms"`
	Preview      *PreviewPayload `json:"preview,omitempty"`
}

// PreviewPayload carries bounded samples of the rebuilt tables.
type PreviewPayload struct {
	Head int `json:"head"`
	model.Tables
}

// handleGetData serves GET /data: the joined outage view, filtered and
// paginated.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	logger := logging.Component("api")

	params, problem := parseDataParams(r)
	if problem != nil {
		writeError(w, r, logger, problem)
		return
	}

	rows, total, err := s.query.Query(r.Context(), params)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrModeledMissing):
			writeError(w, r, logger, NotFound("modeled data not found; run POST /refresh first"))
		case apperrors.Is(err, apperrors.ErrQuery):
			writeError(w, r, logger, BadRequest(err.Error()))
		default:
			logger.Error("query failed", "error", err)
			writeError(w, r, logger, InternalServerError("query failed"))
		}
		return
	}

	if rows == nil {
		rows = []query.OutageView{}
	}
	writeJSON(w, logger, DataResponse{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
		Data:  rows,
	})
}

// parseDataParams parses and validates /data query parameters. A limit above
// the maximum is clamped, not rejected.
func parseDataParams(r *http.Request) (query.Params, *ProblemDetail) {
	q := r.URL.Query()
	params := query.Params{
		Page:       1,
		Limit:      query.DefaultLimit,
		FacilityID: q.Get("facility_id"),
		Generator:  q.Get("generator"),
		PlantName:  q.Get("plant_name"),
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return params, BadRequest("invalid page: " + v)
		}
		params.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return params, BadRequest("invalid limit: " + v)
		}
		params.Limit = limit
	}
	if params.Limit > query.MaxLimit {
		params.Limit = query.MaxLimit
	}

	if v := q.Get("plant_key"); v != "" {
		key, err := strconv.ParseInt(v, 10, 64)
		if err != nil || key < 1 {
			return params, BadRequest("invalid plant_key: " + v)
		}
		params.PlantKey = key
	}

	if v := q.Get("start_date"); v != "" {
		t, err := query.ParseDate(v)
		if err != nil {
			return params, BadRequest(err.Error())
		}
		params.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := query.ParseDate(v)
		if err != nil {
			return params, BadRequest(err.Error())
		}
		params.EndDate = &t
	}

	return params, nil
}

// handleRefresh serves POST /refresh: extract, rebuild, swap, invalidate.
// With preview=true the rebuilt tables are sampled and discarded instead of
// swapped.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.Component("api")
	q := r.URL.Query()

	opts := refresh.Options{Head: config.DefaultPreviewHead}
	if v := q.Get("preview"); v != "" {
		preview, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, logger, BadRequest("invalid preview: "+v))
			return
		}
		opts.Preview = preview
	}
	if v := q.Get("head"); v != "" {
		head, err := strconv.Atoi(v)
		if err != nil || head < 1 || head > config.MaxPreviewHead {
			writeError(w, r, logger, BadRequest("head must be between 1 and "+strconv.Itoa(config.MaxPreviewHead)))
			return
		}
		opts.Head = head
	}

	report, err := s.orch.Run(r.Context(), opts)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrRefreshInFlight):
			writeError(w, r, logger, Conflict("a refresh is already in flight"))
		case apperrors.Is(err, apperrors.ErrCredentials):
			writeError(w, r, logger, BadGateway("upstream rejected API credentials"))
		case apperrors.Is(err, apperrors.ErrExtraction):
			writeError(w, r, logger, BadGateway("extraction failed: "+err.Error()))
		default:
			logger.Error("refresh failed", "error", err)
			writeError(w, r, logger, InternalServerError(err.Error()))
		}
		return
	}

	resp := RefreshResponse{
		Status:       "ok",
		RawRows:      report.Extraction.Total,
		NewRows:      report.Extraction.New,
		SkippedRows:  report.Extraction.Skipped + report.Build.SkippedRows,
		EarlyStopped: report.Extraction.EarlyStopped,
		DimPlant:     report.Build.Plants,
		DimDate:      report.Build.Dates,
		FactOutage:   report.Build.Events,
		DurationMs:   report.Duration.Milliseconds(),
	}
	if report.Preview != nil {
		resp.Status = "preview"
		resp.Preview = &PreviewPayload{Head: opts.Head, Tables: *report.Preview}
	}
	writeJSON(w, logger, resp)
}

// handleHealthz serves GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, logging.Component("api"), map[string]any{
		"status":        "ok",
		"modeled_store": s.modeled.Exists(),
	})
}

// handleStatus serves GET /status: refresh state plus query-cache stats.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	logger := logging.Component("api")

	stats, err := s.query.Stats(r.Context())
	if err != nil && !apperrors.Is(err, apperrors.ErrModeledMissing) {
		logger.Error("stats failed", "error", err)
		writeError(w, r, logger, InternalServerError("stats failed"))
		return
	}

	writeJSON(w, logger, map[string]any{
		"refresh_state": s.orch.State().String(),
		"query":         stats,
	})
}

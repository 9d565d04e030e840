// Package connector extracts daily outage observations from the upstream
// EIA API, pages newest-period-first, and merges them into the raw store
// with natural-key deduplication.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/model"
)

// Client fetches pages from the upstream API with bounded retries.
type Client struct {
	endpoint   string
	apiKey     string
	httpc      *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// ClientConfig configures the upstream API client.
type ClientConfig struct {
	// Endpoint is the full URL of the paginated data route.
	Endpoint string

	// APIKey is the upstream credential (required).
	APIKey string

	// MaxRetries bounds attempts per page (default 3).
	MaxRetries int

	// RetryDelay is the base backoff delay, doubled per attempt (default 5s).
	RetryDelay time.Duration

	// RequestsPerSecond throttles upstream calls. Zero disables throttling.
	RequestsPerSecond float64

	// Timeout bounds a single HTTP request (default 30s).
	Timeout time.Duration
}

// NewClient creates an upstream API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpc:      &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Page is one fetched page of parsed observations.
type Page struct {
	// Rows are the valid observations on the page.
	Rows []model.RawObservation

	// Fetched counts upstream records on the page before validation.
	Fetched int

	// Skipped counts rows dropped for missing natural-key fields.
	Skipped int
}

// apiEnvelope mirrors the upstream response wrapper.
type apiEnvelope struct {
	Response struct {
		Data []apiRecord `json:"data"`
	} `json:"response"`
}

// apiRecord is one upstream row. The feed is loosely typed: numbers may
// arrive as JSON strings, so every field goes through a lenient decoder.
// Unknown upstream fields are ignored.
type apiRecord struct {
	Period        string     `json:"period"`
	Facility      flexString `json:"facility"`
	FacilityName  string     `json:"facilityName"`
	Generator     flexString `json:"generator"`
	Capacity      flexFloat  `json:"capacity"`
	Outage        flexFloat  `json:"outage"`
	PercentOutage flexFloat  `json:"percentOutage"`
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexFloat decodes a JSON number, numeric string, or null into a float.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if v == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(parsed)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// toObservation converts an upstream record, reporting whether all
// natural-key fields are present.
func (r *apiRecord) toObservation() (model.RawObservation, bool) {
	period, err := time.Parse("2006-01-02", r.Period)
	if err != nil || r.Facility == "" || r.Generator == "" {
		return model.RawObservation{}, false
	}
	return model.RawObservation{
		Period:        model.Normalize(period),
		Facility:      string(r.Facility),
		FacilityName:  r.FacilityName,
		Generator:     string(r.Generator),
		CapacityMW:    float64(r.Capacity),
		OutageMW:      float64(r.Outage),
		PercentOutage: float64(r.PercentOutage),
	}, true
}

// FetchPage fetches one page with bounded retries and exponential backoff.
// Credential rejections (401/403) fail immediately; exhausted retries return
// an error wrapping ErrExtraction.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (*Page, error) {
	log := logging.Component("connector")

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrExtraction, "rate limit wait")
			}
		}

		page, err := c.fetchOnce(ctx, offset, limit)
		if err == nil {
			return page, nil
		}
		if apperrors.Is(err, apperrors.ErrCredentials) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.ErrExtraction, "offset %d: %v", offset, ctx.Err())
		}

		lastErr = err
		log.Warn("page fetch failed", "offset", offset, "attempt", attempt, "error", err)

		if attempt < c.maxRetries {
			delay := c.retryDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.ErrExtraction, "offset %d: %v", offset, ctx.Err())
			}
		}
	}

	return nil, apperrors.Wrap(apperrors.ErrExtraction, "offset %d after %d attempts: %v", offset, c.maxRetries, lastErr)
}

// fetchOnce performs a single page request.
func (c *Client) fetchOnce(ctx context.Context, offset, limit int) (*Page, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.Wrap(apperrors.ErrCredentials, "upstream returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	page := &Page{Fetched: len(envelope.Response.Data)}
	for i := range envelope.Response.Data {
		obs, ok := envelope.Response.Data[i].toObservation()
		if !ok {
			page.Skipped++
			continue
		}
		page.Rows = append(page.Rows, obs)
	}
	return page, nil
}

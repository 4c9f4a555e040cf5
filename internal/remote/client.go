// Package remote runs the browser crawler outside the API process. It pulls
// browser-only companies from the API, crawls them locally and pushes the jobs
// back through the results endpoint.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

const defaultTimeout = 60 * time.Second

// Config points the client at the API.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

// Client talks to the job crawler HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rc.SetHeader("X-API-Key", cfg.APIKey)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{http: rc}, nil
}

// ListBrowserCompanies returns the user's active companies without a vendor parser.
func (c *Client) ListBrowserCompanies(ctx context.Context, userID string) ([]jobs.Company, error) {
	var out struct {
		Companies []jobs.Company `json:"companies"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("userID", userID).
		SetQueryParams(map[string]string{"active": "true", "browser_only": "true"}).
		Get("/v1/users/{userID}/companies")
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return out.Companies, nil
}

type submitRequest struct {
	Jobs       []jobs.ParsedJob `json:"jobs"`
	DurationMs int64            `json:"duration_ms"`
}

// SubmitResults pushes one company's crawl output.
func (c *Client) SubmitResults(ctx context.Context, companyID string, parsed []jobs.ParsedJob, duration time.Duration) (jobs.CrawlResult, error) {
	if parsed == nil {
		parsed = []jobs.ParsedJob{}
	}
	var out jobs.CrawlResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("companyID", companyID).
		SetHeader("Content-Type", "application/json").
		SetBody(submitRequest{Jobs: parsed, DurationMs: duration.Milliseconds()}).
		Post("/v1/companies/{companyID}/results")
	if err != nil {
		return out, fmt.Errorf("submit results: %w", err)
	}
	if err := decode(resp, &out); err != nil {
		return out, fmt.Errorf("submit results: %w", err)
	}
	return out, nil
}

func decode(resp *resty.Response, out any) error {
	if resp.IsError() {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body(), &body)
		return &APIError{StatusCode: resp.StatusCode(), Message: body.Error}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

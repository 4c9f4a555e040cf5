package ats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/metrics"
)

const defaultTimeout = 20 * time.Second

// Waiter throttles outbound requests per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// ClientConfig controls vendor HTTP behavior.
type ClientConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// Client performs vendor API GETs. Retries are deliberately disabled.
type Client struct {
	http    *resty.Client
	limiter Waiter
	logger  *zap.Logger
}

// NewClient builds a Client. limiter may be nil.
func NewClient(cfg ClientConfig, limiter Waiter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{http: rc, limiter: limiter, logger: logger}
}

// getJSON fetches rawURL and decodes a 2xx body into out.
// A 404 becomes a not-found VendorAPIError carrying notFoundMsg.
func (c *Client) getJSON(ctx context.Context, vendor, rawURL, notFoundMsg string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return err
		}
	}
	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		metrics.ObserveVendorRequest(vendor, "error", time.Since(start))
		return fmt.Errorf("%s request: %w", vendor, err)
	}
	code := resp.StatusCode()
	switch {
	case code == http.StatusNotFound:
		metrics.ObserveVendorRequest(vendor, "not_found", time.Since(start))
		return &jobs.VendorAPIError{
			Vendor:     vendor,
			StatusCode: code,
			Status:     http.StatusText(code),
			NotFound:   true,
			Message:    notFoundMsg,
		}
	case !resp.IsSuccess():
		metrics.ObserveVendorRequest(vendor, "http_error", time.Since(start))
		return &jobs.VendorAPIError{
			Vendor:     vendor,
			StatusCode: code,
			Status:     http.StatusText(code),
		}
	}
	metrics.ObserveVendorRequest(vendor, "ok", time.Since(start))
	c.logger.Debug("vendor response",
		zap.String("vendor", vendor),
		zap.String("url", rawURL),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", vendor, err)
	}
	return nil
}

package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrCrawlInProgress is returned when a crawl-all for the same user is already running.
	ErrCrawlInProgress = errors.New("crawl already in progress")
	// ErrInvalidStatus is returned for unknown listing statuses.
	ErrInvalidStatus = errors.New("invalid listing status")
)

// TokenExtractionError means a career URL matched none of a vendor's patterns.
type TokenExtractionError struct {
	ATSType ATSType
	URL     string
}

func (e *TokenExtractionError) Error() string {
	return fmt.Sprintf("could not extract %s board token from %q", e.ATSType, e.URL)
}

// VendorAPIError is a non-2xx answer from a vendor API.
type VendorAPIError struct {
	Vendor     string
	StatusCode int
	Status     string
	NotFound   bool
	Message    string
}

func (e *VendorAPIError) Error() string {
	if e.NotFound && e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s API error: %d %s", e.Vendor, e.StatusCode, e.Status)
}

// NavigationError wraps browser failures: timeouts, crashes, unreachable pages.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

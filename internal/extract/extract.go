// Package extract pulls job postings out of rendered career-page HTML.
//
// Structured JSON-LD JobPosting data is preferred. When a page carries none,
// heuristic CSS selector families are tried in order and the first family that
// matches anything wins.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobcrawler/internal/hash/sha256"
	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

// Method records which extraction path produced the jobs.
type Method string

const (
	// MethodJSONLD means embedded schema.org data was used.
	MethodJSONLD Method = "json-ld"
	// MethodHeuristic means DOM selectors were used.
	MethodHeuristic Method = "heuristic"
	// MethodNone means neither path found anything.
	MethodNone Method = "none"
)

// Extractor turns HTML into ParsedJobs.
type Extractor struct {
	hasher jobs.Hasher
}

// New returns an Extractor. A nil hasher defaults to a 16 character SHA-256 prefix.
func New(hasher jobs.Hasher) *Extractor {
	if hasher == nil {
		hasher = sha256.NewTruncated(16)
	}
	return &Extractor{hasher: hasher}
}

// Extract parses html fetched from pageURL. Finding nothing is not an error.
func (e *Extractor) Extract(pageURL, html string) ([]jobs.ParsedJob, Method, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, MethodNone, fmt.Errorf("parse html: %w", err)
	}
	base := baseURL(doc, pageURL)

	if found := e.fromJSONLD(doc, base); len(found) > 0 {
		return found, MethodJSONLD, nil
	}
	if found := e.fromDOM(doc, base); len(found) > 0 {
		return found, MethodHeuristic, nil
	}
	return nil, MethodNone, nil
}

// baseURL honours <base href> and falls back to the page URL.
func baseURL(doc *goquery.Document, pageURL string) *url.URL {
	page, err := url.Parse(pageURL)
	if err != nil {
		page = &url.URL{}
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := page.Parse(strings.TrimSpace(href)); err == nil {
			return b
		}
	}
	return page
}

// resolve turns href into an absolute http(s) URL, or "" when it is not navigable.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return ""
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

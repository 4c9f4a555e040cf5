// Package ats maps career-page URLs of API-backed applicant tracking systems to
// normalized jobs. Each vendor is a Parser; the Registry is the only place that
// knows which ATS types have one.
package ats

import (
	"context"
	"regexp"
	"sort"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

// Parser fetches and normalizes one vendor's postings.
type Parser interface {
	ATSType() jobs.ATSType
	// ExtractToken returns the board token embedded in a career URL.
	ExtractToken(careerURL string) (string, bool)
	// Parse fetches all postings of the board behind careerURL. It never retries.
	Parse(ctx context.Context, careerURL string) ([]jobs.ParsedJob, error)
}

// Registry dispatches ATS types to parsers.
type Registry struct {
	parsers map[jobs.ATSType]Parser
}

// NewRegistry indexes the given parsers by ATS type. Later parsers replace earlier ones.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[jobs.ATSType]Parser, len(parsers))}
	for _, p := range parsers {
		r.parsers[p.ATSType()] = p
	}
	return r
}

// NewDefaultRegistry registers every API vendor against the shared client.
func NewDefaultRegistry(client *Client, bases BaseURLs) *Registry {
	return NewRegistry(
		NewGreenhouse(client, bases.Greenhouse),
		NewLever(client, bases.Lever),
		NewAshby(client, bases.Ashby),
		NewSmartRecruiters(client, bases.SmartRecruiters),
	)
}

// For returns the parser for t.
func (r *Registry) For(t jobs.ATSType) (Parser, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.parsers[t]
	return p, ok
}

// IsAPI reports whether companies of type t can be crawled without a browser.
func (r *Registry) IsAPI(t jobs.ATSType) bool {
	_, ok := r.For(t)
	return ok
}

// Types lists the registered ATS types in lexical order.
func (r *Registry) Types() []jobs.ATSType {
	out := make([]jobs.ATSType, 0, len(r.parsers))
	for t := range r.parsers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BaseURLs overrides vendor API hosts. Empty fields use the public endpoints.
type BaseURLs struct {
	Greenhouse      string
	Lever           string
	Ashby           string
	SmartRecruiters string
}

// tokenPatterns is an ordered list of regexes whose first capture group is the board token.
type tokenPatterns struct {
	patterns []*regexp.Regexp
	reserved map[string]bool
}

func newTokenPatterns(reserved []string, exprs ...string) tokenPatterns {
	tp := tokenPatterns{reserved: make(map[string]bool, len(reserved))}
	for _, expr := range exprs {
		tp.patterns = append(tp.patterns, regexp.MustCompile(expr))
	}
	for _, r := range reserved {
		tp.reserved[r] = true
	}
	return tp
}

func (tp tokenPatterns) extract(careerURL string) (string, bool) {
	for _, re := range tp.patterns {
		m := re.FindStringSubmatch(careerURL)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		if tp.reserved[m[1]] {
			continue
		}
		return m[1], true
	}
	return "", false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

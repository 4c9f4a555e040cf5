package ats

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/textutil"
)

const (
	smartRecruitersAPI      = "https://api.smartrecruiters.com"
	smartRecruitersPageSize = 100
	smartRecruitersMaxJobs  = 1000
)

var smartRecruitersTokens = newTokenPatterns(
	nil,
	`(?i)(?:jobs|careers)\.smartrecruiters\.com/([A-Za-z0-9_-]+)`,
	`(?i)api\.smartrecruiters\.com/v1/companies/([A-Za-z0-9_-]+)`,
)

// SmartRecruiters reads the public postings API, following offset pagination.
type SmartRecruiters struct {
	client  *Client
	baseURL string
}

// NewSmartRecruiters returns a SmartRecruiters parser; an empty baseURL uses the public API.
func NewSmartRecruiters(client *Client, baseURL string) *SmartRecruiters {
	return &SmartRecruiters{client: client, baseURL: strings.TrimRight(orDefault(baseURL, smartRecruitersAPI), "/")}
}

// ATSType implements Parser.
func (s *SmartRecruiters) ATSType() jobs.ATSType { return jobs.ATSSmartRecruiters }

// ExtractToken implements Parser.
func (s *SmartRecruiters) ExtractToken(careerURL string) (string, bool) {
	return smartRecruitersTokens.extract(careerURL)
}

type smartRecruitersPage struct {
	Offset     int                      `json:"offset"`
	Limit      int                      `json:"limit"`
	TotalFound int                      `json:"totalFound"`
	Content    []smartRecruitersPosting `json:"content"`
}

type smartRecruitersPosting struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ReleasedDate string `json:"releasedDate"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
	Department struct {
		Label string `json:"label"`
	} `json:"department"`
	Function struct {
		Label string `json:"label"`
	} `json:"function"`
}

// Parse implements Parser.
func (s *SmartRecruiters) Parse(ctx context.Context, careerURL string) ([]jobs.ParsedJob, error) {
	token, ok := s.ExtractToken(careerURL)
	if !ok {
		return nil, &jobs.TokenExtractionError{ATSType: jobs.ATSSmartRecruiters, URL: careerURL}
	}
	var out []jobs.ParsedJob
	for offset := 0; offset < smartRecruitersMaxJobs; offset += smartRecruitersPageSize {
		endpoint := fmt.Sprintf("%s/v1/companies/%s/postings?limit=%d&offset=%d",
			s.baseURL, url.PathEscape(token), smartRecruitersPageSize, offset)
		var page smartRecruitersPage
		if err := s.client.getJSON(ctx, "SmartRecruiters", endpoint, "SmartRecruiters company not found", &page); err != nil {
			return nil, err
		}
		for _, p := range page.Content {
			out = append(out, s.toParsed(token, p))
		}
		if len(page.Content) == 0 || offset+len(page.Content) >= page.TotalFound {
			break
		}
	}
	return out, nil
}

func (s *SmartRecruiters) toParsed(token string, p smartRecruitersPosting) jobs.ParsedJob {
	var parts []string
	for _, part := range []string{p.Location.City, p.Location.Region, strings.ToUpper(p.Location.Country)} {
		if part = textutil.CleanText(part); part != "" {
			parts = append(parts, part)
		}
	}
	location := strings.Join(parts, ", ")
	department := textutil.CleanText(p.Department.Label)
	if department == "" {
		department = textutil.CleanText(p.Function.Label)
	}
	return jobs.ParsedJob{
		ExternalID: p.ID,
		Title:      textutil.CleanText(p.Name),
		URL:        fmt.Sprintf("https://jobs.smartrecruiters.com/%s/%s", url.PathEscape(token), url.PathEscape(p.ID)),
		Location:   location,
		Remote:     p.Location.Remote || jobs.IsRemote(location),
		Department: department,
		PostedAt:   textutil.ParseTime(p.ReleasedDate),
	}
}

package ats

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/textutil"
)

const ashbyAPI = "https://api.ashbyhq.com"

var ashbyTokens = newTokenPatterns(
	[]string{"api"},
	`(?i)jobs\.ashbyhq\.com/([^/?#]+)`,
	`(?i)api\.ashbyhq\.com/posting-api/job-board/([^/?#]+)`,
)

// Ashby reads the public job board posting API.
type Ashby struct {
	client  *Client
	baseURL string
}

// NewAshby returns an Ashby parser; an empty baseURL uses the public API.
func NewAshby(client *Client, baseURL string) *Ashby {
	return &Ashby{client: client, baseURL: strings.TrimRight(orDefault(baseURL, ashbyAPI), "/")}
}

// ATSType implements Parser.
func (a *Ashby) ATSType() jobs.ATSType { return jobs.ATSAshby }

// ExtractToken implements Parser. Board names may contain escaped spaces.
func (a *Ashby) ExtractToken(careerURL string) (string, bool) {
	token, ok := ashbyTokens.extract(careerURL)
	if !ok {
		return "", false
	}
	if unescaped, err := url.PathUnescape(token); err == nil {
		token = unescaped
	}
	return token, true
}

type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	Department       string `json:"department"`
	Team             string `json:"team"`
	IsRemote         bool   `json:"isRemote"`
	IsListed         *bool  `json:"isListed"`
	DescriptionHTML  string `json:"descriptionHtml"`
	DescriptionPlain string `json:"descriptionPlain"`
	PublishedAt      string `json:"publishedAt"`
	JobURL           string `json:"jobUrl"`
}

// Parse implements Parser. Unlisted postings are skipped.
func (a *Ashby) Parse(ctx context.Context, careerURL string) ([]jobs.ParsedJob, error) {
	token, ok := a.ExtractToken(careerURL)
	if !ok {
		return nil, &jobs.TokenExtractionError{ATSType: jobs.ATSAshby, URL: careerURL}
	}
	endpoint := fmt.Sprintf("%s/posting-api/job-board/%s?includeCompensation=false", a.baseURL, url.PathEscape(token))
	var resp ashbyResponse
	if err := a.client.getJSON(ctx, "Ashby", endpoint, "Ashby job board not found", &resp); err != nil {
		return nil, err
	}
	out := make([]jobs.ParsedJob, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if j.IsListed != nil && !*j.IsListed {
			continue
		}
		location := textutil.CleanText(j.Location)
		department := textutil.CleanText(j.Department)
		if department == "" {
			department = textutil.CleanText(j.Team)
		}
		description := textutil.CleanText(j.DescriptionPlain)
		if description == "" {
			description = textutil.StripHTML(j.DescriptionHTML)
		}
		out = append(out, jobs.ParsedJob{
			ExternalID:  j.ID,
			Title:       textutil.CleanText(j.Title),
			URL:         j.JobURL,
			Location:    location,
			Remote:      j.IsRemote || jobs.IsRemote(location),
			Department:  department,
			Description: description,
			PostedAt:    textutil.ParseTime(j.PublishedAt),
		})
	}
	return out, nil
}

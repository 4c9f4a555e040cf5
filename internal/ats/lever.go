package ats

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/textutil"
)

const leverAPI = "https://api.lever.co"

var leverTokens = newTokenPatterns(
	nil,
	`(?i)jobs\.(?:eu\.)?lever\.co/([A-Za-z0-9_.-]+)`,
	`(?i)api\.(?:eu\.)?lever\.co/v0/postings/([A-Za-z0-9_.-]+)`,
)

// Lever reads the public postings API.
type Lever struct {
	client  *Client
	baseURL string
}

// NewLever returns a Lever parser; an empty baseURL uses the public API.
func NewLever(client *Client, baseURL string) *Lever {
	return &Lever{client: client, baseURL: strings.TrimRight(orDefault(baseURL, leverAPI), "/")}
}

// ATSType implements Parser.
func (l *Lever) ATSType() jobs.ATSType { return jobs.ATSLever }

// ExtractToken implements Parser.
func (l *Lever) ExtractToken(careerURL string) (string, bool) {
	return leverTokens.extract(careerURL)
}

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	WorkplaceType    string `json:"workplaceType"`
	Description      string `json:"description"`
	DescriptionPlain string `json:"descriptionPlain"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Department string `json:"department"`
	} `json:"categories"`
}

// Parse implements Parser.
func (l *Lever) Parse(ctx context.Context, careerURL string) ([]jobs.ParsedJob, error) {
	token, ok := l.ExtractToken(careerURL)
	if !ok {
		return nil, &jobs.TokenExtractionError{ATSType: jobs.ATSLever, URL: careerURL}
	}
	endpoint := fmt.Sprintf("%s/v0/postings/%s?mode=json", l.baseURL, url.PathEscape(token))
	var postings []leverPosting
	if err := l.client.getJSON(ctx, "Lever", endpoint, "Lever company not found", &postings); err != nil {
		return nil, err
	}
	out := make([]jobs.ParsedJob, 0, len(postings))
	for _, p := range postings {
		location := textutil.CleanText(p.Categories.Location)
		department := textutil.CleanText(p.Categories.Department)
		if department == "" {
			department = textutil.CleanText(p.Categories.Team)
		}
		description := textutil.CleanText(p.DescriptionPlain)
		if description == "" {
			description = textutil.StripHTML(p.Description)
		}
		out = append(out, jobs.ParsedJob{
			ExternalID:  p.ID,
			Title:       textutil.CleanText(p.Text),
			URL:         p.HostedURL,
			Location:    location,
			Remote:      jobs.IsRemote(location) || strings.EqualFold(p.WorkplaceType, "remote"),
			Department:  department,
			Description: description,
			PostedAt:    fromUnixMillis(p.CreatedAt),
		})
	}
	return out, nil
}

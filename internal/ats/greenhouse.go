package ats

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/textutil"
)

const greenhouseAPI = "https://boards-api.greenhouse.io"

var greenhouseTokens = newTokenPatterns(
	[]string{"boards", "job-boards", "api", "app", "www", "embed"},
	`(?i)greenhouse\.io/embed/job_board\?(?:.*&)?for=([A-Za-z0-9_-]+)`,
	`(?i)(?:job-boards|boards)(?:\.eu)?\.greenhouse\.io/([A-Za-z0-9_-]+)`,
	`(?i)^https?://([A-Za-z0-9_-]+)\.greenhouse\.io`,
)

// Greenhouse reads the public boards API.
type Greenhouse struct {
	client  *Client
	baseURL string
}

// NewGreenhouse returns a Greenhouse parser; an empty baseURL uses the public API.
func NewGreenhouse(client *Client, baseURL string) *Greenhouse {
	return &Greenhouse{client: client, baseURL: strings.TrimRight(orDefault(baseURL, greenhouseAPI), "/")}
}

// ATSType implements Parser.
func (g *Greenhouse) ATSType() jobs.ATSType { return jobs.ATSGreenhouse }

// ExtractToken implements Parser.
func (g *Greenhouse) ExtractToken(careerURL string) (string, bool) {
	return greenhouseTokens.extract(careerURL)
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title"`
	AbsoluteURL    string            `json:"absolute_url"`
	Content        string            `json:"content"`
	UpdatedAt      string            `json:"updated_at"`
	FirstPublished string            `json:"first_published"`
	Location       greenhouseNamed   `json:"location"`
	Departments    []greenhouseNamed `json:"departments"`
}

type greenhouseNamed struct {
	Name string `json:"name"`
}

// Parse implements Parser.
func (g *Greenhouse) Parse(ctx context.Context, careerURL string) ([]jobs.ParsedJob, error) {
	token, ok := g.ExtractToken(careerURL)
	if !ok {
		return nil, &jobs.TokenExtractionError{ATSType: jobs.ATSGreenhouse, URL: careerURL}
	}
	endpoint := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", g.baseURL, url.PathEscape(token))
	var resp greenhouseResponse
	if err := g.client.getJSON(ctx, "Greenhouse", endpoint, "Greenhouse board not found", &resp); err != nil {
		return nil, err
	}
	out := make([]jobs.ParsedJob, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		location := textutil.CleanText(j.Location.Name)
		posted := j.FirstPublished
		if posted == "" {
			posted = j.UpdatedAt
		}
		out = append(out, jobs.ParsedJob{
			ExternalID:  strconv.FormatInt(j.ID, 10),
			Title:       textutil.CleanText(j.Title),
			URL:         j.AbsoluteURL,
			Location:    location,
			Remote:      jobs.IsRemote(location),
			Department:  firstDepartment(j.Departments),
			Description: textutil.StripHTML(j.Content),
			PostedAt:    textutil.ParseTime(posted),
		})
	}
	return out, nil
}

func firstDepartment(deps []greenhouseNamed) string {
	for _, d := range deps {
		if name := textutil.CleanText(d.Name); name != "" {
			return name
		}
	}
	return ""
}

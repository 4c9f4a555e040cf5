package extract

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/textutil"
)

// containerFamilies are tried in order; the first family that matches any
// element is used exclusively.
var containerFamilies = [][]string{
	{"[data-job-id]", "[data-jobid]", "[data-posting-id]", "[data-automation-id='jobTitle']"},
	{".job-listing", ".job-item", ".job-card", ".job-post", ".job-posting", ".job-result", ".job-row", ".posting"},
	{".opening", ".position", ".vacancy", ".career-item", ".careers-item", ".role", ".openings li"},
	{"li[class*='job']", "article[class*='job']", "tr[class*='job']", "div[class*='job-']"},
	{
		"a[href*='/jobs/']", "a[href*='/job/']", "a[href*='/positions/']",
		"a[href*='/careers/']", "a[href*='/openings/']", "a[href*='gh_jid=']",
	},
}

var titleSelectors = []string{
	"[data-automation-id='jobTitle']",
	".job-title", ".posting-title", ".position-title", ".opening-title",
	"[class*='title']",
	"h2", "h3", "h4", "h5",
	"a",
}

var locationSelectors = []string{
	".location", ".job-location", ".job__location", ".posting-location",
	"[data-testid='job-location']", "[data-testid='location']",
	"[data-automation-id='locations']",
	"[class*='location']",
}

var departmentSelectors = []string{
	".department", ".job-department", ".team", "[class*='department']",
}

// boilerplateTitles are navigation labels that are never job titles.
var boilerplateTitles = []string{
	"about us", "about", "contact", "contact us", "privacy", "privacy policy",
	"cookie", "cookies", "cookie policy", "terms", "terms of use", "terms of service",
	"login", "log in", "sign in", "sign up", "blog", "careers", "home", "apply",
	"apply now", "learn more", "read more", "view all jobs", "see all jobs", "view job",
	"view details", "back", "next", "previous", "search", "menu", "load more", "show more",
}

const (
	minTitleLen = 3
	maxTitleLen = 200
)

func validTitle(title string) bool {
	n := utf8.RuneCountInString(title)
	if n < minTitleLen || n >= maxTitleLen {
		return false
	}
	lower := strings.Trim(strings.ToLower(title), " .:!>»›→")
	for _, phrase := range boilerplateTitles {
		if lower == phrase {
			return false
		}
	}
	return true
}

// fromDOM applies the container families and builds one job per distinct URL.
func (e *Extractor) fromDOM(doc *goquery.Document, base *url.URL) []jobs.ParsedJob {
	for _, family := range containerFamilies {
		matches := doc.Find(strings.Join(family, ", "))
		if matches.Length() == 0 {
			continue
		}
		return e.collect(matches, base)
	}
	return nil
}

func (e *Extractor) collect(matches *goquery.Selection, base *url.URL) []jobs.ParsedJob {
	var out []jobs.ParsedJob
	seenURL := make(map[string]bool)
	seenID := make(map[string]bool)
	matches.Each(func(i int, el *goquery.Selection) {
		title := findTitle(el)
		if title == "" {
			return
		}
		jobURL := findURL(el, base)
		if jobURL != "" {
			if seenURL[jobURL] {
				return
			}
			seenURL[jobURL] = true
		}
		location := firstText(el, locationSelectors)
		job := jobs.ParsedJob{
			ExternalID: e.externalID(jobURL, title, i),
			Title:      title,
			URL:        jobURL,
			Location:   location,
			Remote:     jobs.IsRemote(location) || jobs.IsRemote(title),
			Department: firstText(el, departmentSelectors),
		}
		if seenID[job.ExternalID] {
			return
		}
		seenID[job.ExternalID] = true
		out = append(out, job)
	})
	return out
}

func findTitle(el *goquery.Selection) string {
	for _, sel := range titleSelectors {
		var found string
		el.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := textutil.CleanText(s.Text())
			if validTitle(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	// Anchor containers usually carry the title as their own text.
	if own := textutil.CleanText(el.Text()); validTitle(own) {
		return own
	}
	return ""
}

// findURL prefers the element's own href, then nested anchors, then an enclosing anchor.
func findURL(el *goquery.Selection, base *url.URL) string {
	if href, ok := el.Attr("href"); ok {
		if u := resolve(base, href); u != "" {
			return u
		}
	}
	var found string
	el.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		found = resolve(base, href)
		return found == ""
	})
	if found != "" {
		return found
	}
	if href, ok := el.Closest("a[href]").Attr("href"); ok {
		return resolve(base, href)
	}
	return ""
}

func firstText(el *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := textutil.CleanText(el.Find(sel).First().Text()); text != "" {
			return textutil.Truncate(text, maxTitleLen)
		}
	}
	return ""
}

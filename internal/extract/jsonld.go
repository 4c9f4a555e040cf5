package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
	"github.com/JakeFAU/jobcrawler/internal/textutil"
)

// fromJSONLD collects JobPosting objects from every ld+json script on the page.
// Single objects, arrays and @graph containers are supported.
func (e *Extractor) fromJSONLD(doc *goquery.Document, base *url.URL) []jobs.ParsedJob {
	var out []jobs.ParsedJob
	seen := make(map[string]bool)
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !gjson.Valid(raw) {
			return
		}
		for _, posting := range jobPostings(gjson.Parse(raw)) {
			job, ok := e.fromPosting(posting, base, len(out))
			if !ok || seen[job.ExternalID] {
				continue
			}
			seen[job.ExternalID] = true
			out = append(out, job)
		}
	})
	return out
}

func jobPostings(v gjson.Result) []gjson.Result {
	var out []gjson.Result
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			out = append(out, jobPostings(item)...)
		}
	case v.IsObject():
		if isJobPosting(v) {
			return []gjson.Result{v}
		}
		if graph := key(v, "@graph"); graph.Exists() {
			out = append(out, jobPostings(graph)...)
		}
	}
	return out
}

func isJobPosting(v gjson.Result) bool {
	typ := key(v, "@type")
	if typ.IsArray() {
		for _, t := range typ.Array() {
			if strings.EqualFold(t.String(), "JobPosting") {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(typ.String(), "JobPosting")
}

// key looks a member up by exact name. gjson treats a leading '@' in a path as a
// modifier, so JSON-LD keywords cannot go through Get.
func key(v gjson.Result, name string) gjson.Result {
	var found gjson.Result
	v.ForEach(func(k, value gjson.Result) bool {
		if k.String() == name {
			found = value
			return false
		}
		return true
	})
	return found
}

func (e *Extractor) fromPosting(p gjson.Result, base *url.URL, index int) (jobs.ParsedJob, bool) {
	title := textutil.CleanText(p.Get("title").String())
	if title == "" {
		title = textutil.CleanText(p.Get("name").String())
	}
	if title == "" {
		return jobs.ParsedJob{}, false
	}
	jobURL := resolve(base, p.Get("url").String())

	location := postingLocation(p.Get("jobLocation"))
	remote := strings.Contains(strings.ToUpper(p.Get("jobLocationType").Raw), "TELECOMMUTE")
	if remote && location == "" {
		location = "Remote"
	}
	remote = remote || jobs.IsRemote(location)

	externalID := identifier(p.Get("identifier"))
	if externalID == "" {
		externalID = e.externalID(jobURL, title, index)
	}

	return jobs.ParsedJob{
		ExternalID:  externalID,
		Title:       title,
		URL:         jobURL,
		Location:    location,
		Remote:      remote,
		Department:  firstString(p.Get("occupationalCategory"), p.Get("industry"), p.Get("department")),
		Description: textutil.StripHTML(p.Get("description").String()),
		PostedAt:    textutil.ParseTime(p.Get("datePosted").String()),
	}, true
}

func identifier(v gjson.Result) string {
	switch {
	case !v.Exists():
		return ""
	case v.IsObject():
		return strings.TrimSpace(v.Get("value").String())
	case v.IsArray():
		for _, item := range v.Array() {
			if id := identifier(item); id != "" {
				return id
			}
		}
		return ""
	default:
		return strings.TrimSpace(v.String())
	}
}

// postingLocation renders one or many schema.org Place values.
func postingLocation(v gjson.Result) string {
	var places []gjson.Result
	if v.IsArray() {
		places = v.Array()
	} else if v.Exists() {
		places = []gjson.Result{v}
	}
	var out []string
	seen := make(map[string]bool)
	for _, place := range places {
		loc := placeText(place)
		if loc == "" || seen[strings.ToLower(loc)] {
			continue
		}
		seen[strings.ToLower(loc)] = true
		out = append(out, loc)
	}
	return strings.Join(out, "; ")
}

func placeText(place gjson.Result) string {
	if place.Type == gjson.String {
		return textutil.CleanText(place.String())
	}
	addr := place.Get("address")
	if addr.Type == gjson.String {
		return textutil.CleanText(addr.String())
	}
	var parts []string
	for _, field := range []string{"addressLocality", "addressRegion", "addressCountry"} {
		part := addr.Get(field)
		if part.IsObject() {
			part = part.Get("name")
		}
		if text := textutil.CleanText(part.String()); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return textutil.CleanText(place.Get("name").String())
	}
	return strings.Join(parts, ", ")
}

func firstString(values ...gjson.Result) string {
	for _, v := range values {
		if v.IsArray() {
			for _, item := range v.Array() {
				if s := textutil.CleanText(item.String()); s != "" {
					return s
				}
			}
			continue
		}
		if s := textutil.CleanText(v.String()); s != "" {
			return s
		}
	}
	return ""
}

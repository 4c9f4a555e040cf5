package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// numericIDPatterns are tried in order against a job URL; the first capture wins.
var numericIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/(?:jobs?|positions?|careers?|openings?|postings?|vacanc(?:y|ies)|requisitions?)/(\d+)(?:[/?#-]|$)`),
	regexp.MustCompile(`(?i)[?&](?:id|job_?id|gh_jid|jid|req_?id|requisition_?id|posting_?id)=(\d+)(?:&|#|$)`),
	regexp.MustCompile(`/(\d{5,})(?:[/?#]|$)`),
}

// numericID returns the first numeric identifier embedded in rawURL.
func numericID(rawURL string) (string, bool) {
	for _, re := range numericIDPatterns {
		if m := re.FindStringSubmatch(rawURL); len(m) == 2 {
			return m[1], true
		}
	}
	return "", false
}

// externalID derives a stable identifier for a heuristically extracted job:
// a numeric id from the URL, else a hash of the URL, else a hash of the title
// and the element's position on the page.
func (e *Extractor) externalID(jobURL, title string, index int) string {
	if jobURL != "" {
		if id, ok := numericID(jobURL); ok {
			return id
		}
		return "url-" + e.digest(jobURL)
	}
	return "title-" + e.digest(fmt.Sprintf("%s|%d", strings.ToLower(title), index))
}

func (e *Extractor) digest(s string) string {
	sum, err := e.hasher.Hash([]byte(s))
	if err != nil || sum == "" {
		return s
	}
	return sum
}

// Package match scores job listings against a user's JobProfile.
//
// Scoring is a pure function of its inputs. Each signal contributes a bounded
// number of points and the Breakdown exposes every contribution so a UI can
// explain the score.
package match

import (
	"math"
	"strings"
	"unicode"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

// Signal weights. A perfect listing scores 100.
const (
	KeywordWeight  = 40.0
	TitleWeight    = 35.0
	LocationWeight = 15.0
	RemoteWeight   = 10.0
)

// Reasons reported in Breakdown.ExcludedReason.
const (
	ReasonExcludedLocation = "excluded_location"
	ReasonNotRemote        = "not_remote"
)

// Breakdown holds each signal's contribution in points.
type Breakdown struct {
	Keyword         float64  `json:"keyword"`
	Title           float64  `json:"title"`
	Location        float64  `json:"location"`
	Remote          float64  `json:"remote"`
	MatchedKeywords []string `json:"matched_keywords"`
	MatchedTitle    string   `json:"matched_title,omitempty"`
	MatchedLocation string   `json:"matched_location,omitempty"`
	Excluded        bool     `json:"excluded"`
	ExcludedReason  string   `json:"excluded_reason,omitempty"`
}

// Result is a score in [0,100] with one decimal and its explanation.
type Result struct {
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Score is CalculateWithBreakdown without the explanation.
func Score(listing jobs.JobListing, profile jobs.JobProfile) float64 {
	return CalculateWithBreakdown(listing, profile).Score
}

// CalculateWithBreakdown scores listing against profile.
func CalculateWithBreakdown(listing jobs.JobListing, profile jobs.JobProfile) Result {
	var b Breakdown
	titleTokens := tokenize(listing.Title)
	textTokens := tokenize(listing.Title + " " + listing.Description)

	b.Keyword, b.MatchedKeywords = keywordSignal(textTokens, profile.Keywords)
	b.Title, b.MatchedTitle = titleSignal(titleTokens, profile.Titles)

	remote := listing.Remote || jobs.IsRemote(listing.Location)
	location := normalize(listing.Location)

	if hit := firstPlace(location, remote, profile.ExcludedLocations); hit != "" {
		b.Excluded = true
		b.ExcludedReason = ReasonExcludedLocation
		b.MatchedLocation = hit
	}

	switch {
	case len(nonEmpty(profile.Locations)) > 0:
		if hit := firstPlace(location, remote, profile.Locations); hit != "" {
			b.Location = LocationWeight
			if b.MatchedLocation == "" {
				b.MatchedLocation = hit
			}
		}
	case !profile.RemoteOnly:
		b.Location = LocationWeight
	}

	if profile.RemoteOnly {
		if remote {
			b.Remote = RemoteWeight
		} else if !b.Excluded {
			b.Excluded = true
			b.ExcludedReason = ReasonNotRemote
		}
	}

	b.Keyword = round1(b.Keyword)
	b.Title = round1(b.Title)

	score := 0.0
	if !b.Excluded {
		score = b.Keyword + b.Title + b.Location + b.Remote
	}
	return Result{Score: round1(clamp(score, 0, 100)), Breakdown: b}
}

// keywordSignal credits a full point per keyword found as a phrase and half a
// point when all its words appear apart.
func keywordSignal(text []string, keywords []string) (float64, []string) {
	phrase := " " + strings.Join(text, " ") + " "
	set := toSet(text)
	matched := []string{}
	total, hits := 0, 0.0
	for _, kw := range keywords {
		kwTokens := tokenize(kw)
		if len(kwTokens) == 0 {
			continue
		}
		total++
		switch {
		case strings.Contains(phrase, " "+strings.Join(kwTokens, " ")+" "):
			hits++
			matched = append(matched, kw)
		case containsAll(set, kwTokens):
			hits += 0.5
			matched = append(matched, kw)
		}
	}
	if total == 0 {
		return 0, matched
	}
	return hits / float64(total) * KeywordWeight, matched
}

// titleSignal takes the best target title: a full phrase match counts 1.0,
// otherwise the share of the target's words present in the listing title.
func titleSignal(title []string, targets []string) (float64, string) {
	phrase := " " + strings.Join(title, " ") + " "
	set := toSet(title)
	best, bestTitle := 0.0, ""
	for _, target := range targets {
		tt := tokenize(target)
		if len(tt) == 0 {
			continue
		}
		ratio := 0.0
		if strings.Contains(phrase, " "+strings.Join(tt, " ")+" ") {
			ratio = 1
		} else {
			n := 0
			for _, tok := range tt {
				if set[tok] {
					n++
				}
			}
			ratio = float64(n) / float64(len(tt))
		}
		if ratio > best {
			best, bestTitle = ratio, target
		}
	}
	return best * TitleWeight, bestTitle
}

// firstPlace returns the first entry of places that matches the listing location.
// An entry naming remote work also matches any remote listing.
func firstPlace(location string, remote bool, places []string) string {
	padded := " " + location + " "
	for _, p := range places {
		np := normalize(p)
		if np == "" {
			continue
		}
		if strings.Contains(padded, " "+np+" ") || (remote && jobs.IsRemote(np)) {
			return p
		}
	}
	return ""
}

func tokenize(s string) []string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '+', r == '#', r == '.':
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, s)
	fields := strings.Fields(mapped)
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "."); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.Join(tokenize(s), " ")
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func containsAll(set map[string]bool, tokens []string) bool {
	for _, t := range tokens {
		if !set[t] {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Package textutil normalizes text scraped from vendor APIs and career pages.
package textutil

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelector lists elements whose boundaries separate words once tags are removed.
const blockSelector = "p, div, li, ul, ol, br, h1, h2, h3, h4, h5, h6, tr, td, th, section, article, blockquote"

// CleanText collapses runs of whitespace (including NBSP) into single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// StripHTML removes markup from an HTML fragment and normalizes whitespace.
// Entity-escaped markup, as Greenhouse returns it, is unescaped first.
func StripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") && strings.Contains(fragment, "&lt;") {
		fragment = html.UnescapeString(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(html.UnescapeString(fragment))
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return CleanText(doc.Text())
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

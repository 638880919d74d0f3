// Package textutil holds the plain-text helpers shared by the context
// extractor and the knowledge searcher.
package textutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripMarkup converts HTML to plain text. Malformed markup falls back to the
// input unchanged rather than failing the caller.
func StripMarkup(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.TrimSpace(html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	return strings.TrimSpace(collapseSpace(doc.Text()))
}

// Truncate bounds s to max runes, appending an ellipsis when it was cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

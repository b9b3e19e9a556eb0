package ingest

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// CleanText strips markup from search snippets and decodes HTML entities.
// Search APIs highlight matches with <b> tags and escape quotes.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	stripped := stripPolicy.Sanitize(s)
	// Sanitize re-escapes, and snippets are often double-escaped.
	decoded := html.UnescapeString(html.UnescapeString(stripped))
	return strings.Join(strings.Fields(decoded), " ")
}

// parsePubDate parses an RFC 1123 date with numeric zone, e.g.
// "Tue, 29 Jul 2025 18:48:00 +0900". Unparseable dates become now.
func parsePubDate(s string, now time.Time) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return now
}

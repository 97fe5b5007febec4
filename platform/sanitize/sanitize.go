// Package sanitize cleans free text received from intake submissions before
// it is written to a matter.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// blankRunRegex matches three or more consecutive line breaks
	blankRunRegex = regexp.MustCompile(`\n{3,}`)
)

// StripHTML removes all HTML tags from a string, decoding the common entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	result = strings.ReplaceAll(result, "&nbsp;", " ")
	result = strings.ReplaceAll(result, "&amp;", "&")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML, normalizes line endings and collapses runs of blank
// lines to one.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = StripHTML(s)
	return blankRunRegex.ReplaceAllString(s, "\n\n")
}

// Lines applies Text to each entry and drops entries left empty.
func Lines(in []string) []string {
	var out []string
	for _, s := range in {
		if cleaned := Text(s); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
